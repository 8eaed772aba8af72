package screenparse

import (
	"context"
	"fmt"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// Screenshotter provides the current viewport as a base64 image, letting
// screen.parse work without an explicit image argument.
type Screenshotter interface {
	Screenshot(ctx context.Context) (string, error)
}

// RegisterTools adds the screen.parse tool. When the image parameter is
// omitted and a Screenshotter is available, the current browser viewport is
// parsed instead.
func RegisterTools(registry *tool.Registry, client *Client, shots Screenshotter) error {
	def := tool.Definition{
		Name:        "screen.parse",
		Description: "Parse a screenshot into a list of UI elements with labels and coordinates.",
		Parameters: []tool.Parameter{
			{Name: "image", Description: "Base64-encoded screenshot. Defaults to the current browser viewport."},
		},
		Handler: func(ctx context.Context, params map[string]string) (string, error) {
			image := params["image"]
			if image == "" {
				if shots == nil {
					return "", fmt.Errorf("no image provided and no browser available")
				}
				captured, err := shots.Screenshot(ctx)
				if err != nil {
					return "", fmt.Errorf("capture viewport: %w", err)
				}
				image = captured
			}

			result, err := client.Parse(ctx, image)
			if err != nil {
				return "", err
			}
			return result.Describe(), nil
		},
	}

	if err := registry.Register(def); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	return nil
}
