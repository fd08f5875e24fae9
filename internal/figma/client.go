// Package figma fetches design context (frames and components) from the
// Figma REST API. Everything here is best-effort: any failure degrades to
// absent design context rather than an error.
package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/planbot/pkg/models"
)

const apiBase = "https://api.figma.com/v1"

// MaxFrames and MaxComponents bound how much of a design file is pulled
// into one context bundle.
const (
	MaxFrames     = 50
	MaxComponents = 30
)

// fileURLPattern matches the three Figma URL shapes that carry a file key.
var fileURLPattern = regexp.MustCompile(`figma\.com/(?:file|design|proto)/([A-Za-z0-9]+)`)

// ExtractFileKey pulls the file key out of a Figma URL found in issue text.
func ExtractFileKey(url string) (string, bool) {
	m := fileURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FindFileKeys scans free text for Figma URLs and returns the distinct file
// keys in order of first appearance.
func FindFileKeys(text string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range fileURLPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Client talks to the Figma REST API with a personal access token.
type Client struct {
	token   string
	http    *http.Client
	limiter *rate.Limiter
	base    string
}

// NewClient creates a Figma client. An empty token yields a disabled client
// whose fetches all report absence.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		base:    apiBase,
	}
}

// Enabled reports whether a token was configured.
func (c *Client) Enabled() bool { return c.token != "" }

// fileResponse mirrors the slice of GET /v1/files/{key} we consume. Only
// two levels of the node tree are requested; frames live directly under
// canvases.
type fileResponse struct {
	Name     string `json:"name"`
	Document struct {
		Children []fileNode `json:"children"`
	} `json:"document"`
}

type fileNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Children []fileNode `json:"children"`
}

type componentsResponse struct {
	Meta struct {
		Components []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"components"`
	} `json:"meta"`
}

// FetchFileContext fetches the file name, its top-level frames and its
// published components. Returns (nil, nil) on any failure: design context
// is always optional.
func (c *Client) FetchFileContext(ctx context.Context, fileKey string) (*models.DesignContext, error) {
	if !c.Enabled() {
		return nil, nil
	}

	var file fileResponse
	if ok := c.get(ctx, fmt.Sprintf("/files/%s?depth=2", fileKey), &file); !ok {
		return nil, nil
	}

	dc := &models.DesignContext{
		FileName: file.Name,
		FileKey:  fileKey,
	}

	for _, canvas := range file.Document.Children {
		if canvas.Type != "CANVAS" {
			continue
		}
		for _, node := range canvas.Children {
			if node.Type != "FRAME" && node.Type != "COMPONENT" && node.Type != "COMPONENT_SET" {
				continue
			}
			dc.Frames = append(dc.Frames, models.DesignFrame{Name: node.Name, Type: node.Type})
			if len(dc.Frames) >= MaxFrames {
				break
			}
		}
		if len(dc.Frames) >= MaxFrames {
			break
		}
	}

	var comps componentsResponse
	if ok := c.get(ctx, fmt.Sprintf("/files/%s/components", fileKey), &comps); ok {
		for _, comp := range comps.Meta.Components {
			dc.Components = append(dc.Components, models.DesignComponent{
				Name:        comp.Name,
				Description: comp.Description,
			})
			if len(dc.Components) >= MaxComponents {
				break
			}
		}
	}

	log.Debug().Str("file", file.Name).Int("frames", len(dc.Frames)).
		Int("components", len(dc.Components)).Msg("fetched design context")

	return dc, nil
}

// CheckToken verifies the token against /v1/me.
func (c *Client) CheckToken(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("figma token not configured")
	}
	var me struct {
		Email string `json:"email"`
	}
	if ok := c.get(ctx, "/me", &me); !ok {
		return fmt.Errorf("figma token rejected")
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v interface{}) bool {
	if err := c.limiter.Wait(ctx); err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-FIGMA-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("figma request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("figma request rejected")
		return false
	}

	return json.NewDecoder(resp.Body).Decode(v) == nil
}
