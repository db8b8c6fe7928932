package agenttools

import (
	"context"
	"strings"
)

type NoopParams struct {
	Comment string `json:"comment,omitempty"`
}

func NoopTool() Tool {
	return Func("noop",
		"Explicitly do nothing and leave a short optional comment about why.",
		`{"type":"object","properties":{"comment":{"type":"string","maxLength":500}},"additionalProperties":false}`,
		func(_ context.Context, p NoopParams) Result {
			return Success(map[string]any{
				"status":  "idle",
				"comment": strings.TrimSpace(p.Comment),
			})
		},
	)
}
