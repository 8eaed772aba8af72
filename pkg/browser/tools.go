package browser

import (
	"context"
	"fmt"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// pageDriver is the surface tools need from the controller. Kept narrow so
// tests can substitute a fake.
type pageDriver interface {
	Navigate(ctx context.Context, url string) (string, error)
	Search(ctx context.Context, query string) (string, error)
	Click(ctx context.Context, selector string) (string, error)
	Type(ctx context.Context, selector, text string) (string, error)
	ExtractText(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context) (string, error)
}

// RegisterTools adds the browser.* tool set to the registry, all backed by
// the given controller.
func RegisterTools(registry *tool.Registry, driver pageDriver) error {
	defs := []tool.Definition{
		{
			Name:        "browser.navigate",
			Description: "Open a URL in the browser and wait for the page to load.",
			Parameters: []tool.Parameter{
				{Name: "url", Description: "Absolute URL to open.", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]string) (string, error) {
				return driver.Navigate(ctx, params["url"])
			},
		},
		{
			Name:        "browser.search",
			Description: "Search the web and return the text of the results page.",
			Parameters: []tool.Parameter{
				{Name: "query", Description: "Search query.", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]string) (string, error) {
				return driver.Search(ctx, params["query"])
			},
		},
		{
			Name:        "browser.click",
			Description: "Click the first element matching a CSS selector on the current page.",
			Parameters: []tool.Parameter{
				{Name: "selector", Description: "CSS selector of the element to click.", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]string) (string, error) {
				return driver.Click(ctx, params["selector"])
			},
		},
		{
			Name:        "browser.type",
			Description: "Type text into the first element matching a CSS selector.",
			Parameters: []tool.Parameter{
				{Name: "selector", Description: "CSS selector of the input element.", Required: true},
				{Name: "text", Description: "Text to type.", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]string) (string, error) {
				return driver.Type(ctx, params["selector"], params["text"])
			},
		},
		{
			Name:        "browser.extract",
			Description: "Extract the visible text of the first element matching a CSS selector.",
			Parameters: []tool.Parameter{
				{Name: "selector", Description: "CSS selector of the element to read.", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]string) (string, error) {
				return driver.ExtractText(ctx, params["selector"])
			},
		},
		{
			Name:        "browser.screenshot",
			Description: "Capture the current viewport as a base64-encoded PNG.",
			Handler: func(ctx context.Context, _ map[string]string) (string, error) {
				return driver.Screenshot(ctx)
			},
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}
