package xmrig

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/restartfu/grid-miner/internal/domain"
)

// DefaultTemplate is the xmrig config.json shipped with the binary.
//
//go:embed config.json.tmpl
var DefaultTemplate string

const (
	PlaceholderPool     = "$url$"
	PlaceholderUsername = "$username$"
	PlaceholderThreads  = "$threads$"
	PlaceholderMaxCPU   = "$maxcpu$"
)

var placeholders = []string{
	PlaceholderPool,
	PlaceholderUsername,
	PlaceholderThreads,
	PlaceholderMaxCPU,
}

var (
	errEmptyTemplate   = errors.New("template is empty")
	errMissingIdentity = errors.New("worker id requested but identity is empty")
)

type RenderedConfig struct {
	Body []byte
}

// Username returns the pool login for cfg, suffixed with the worker identity
// when requested.
func Username(cfg domain.MiningConfig, identity string) string {
	if cfg.AppendWorkerID {
		return cfg.Username + "." + identity
	}
	return cfg.Username
}

// Render substitutes cfg into template. Substitution happens in a single pass,
// so values are never expanded a second time.
func Render(template string, cfg domain.MiningConfig, identity string) (RenderedConfig, error) {
	if strings.TrimSpace(template) == "" {
		return RenderedConfig{}, &domain.TemplateError{Op: "render", Err: errEmptyTemplate}
	}
	if cfg.AppendWorkerID && identity == "" {
		return RenderedConfig{}, &domain.TemplateError{Op: "render", Err: errMissingIdentity}
	}

	replacer := strings.NewReplacer(
		PlaceholderPool, cfg.Pool,
		PlaceholderUsername, Username(cfg, identity),
		PlaceholderThreads, strconv.Itoa(cfg.Threads),
		PlaceholderMaxCPU, strconv.Itoa(cfg.MaxCPU),
	)
	out := replacer.Replace(template)
	for _, placeholder := range placeholders {
		if strings.Contains(out, placeholder) {
			return RenderedConfig{}, &domain.TemplateError{
				Op:  "render",
				Err: fmt.Errorf("placeholder %s left in output", placeholder),
			}
		}
	}
	return RenderedConfig{Body: []byte(out)}, nil
}

// LoadTemplate reads a template file. An empty path selects DefaultTemplate.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.TemplateError{Op: "read", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", &domain.TemplateError{Op: "read", Err: fmt.Errorf("%s: %w", path, errEmptyTemplate)}
	}
	return string(data), nil
}
