package oauth

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// Presenter hands an authorization URL to the user. It returns once the UI is
// shown; the result arrives later through the redirect callback.
type Presenter interface {
	Present(ctx context.Context, authURL string) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, authURL string) error

// Present implements Presenter.
func (f PresenterFunc) Present(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}

// WriterPresenter prints the URL for the user to open.
type WriterPresenter struct {
	W io.Writer
}

// Present implements Presenter.
func (p WriterPresenter) Present(_ context.Context, authURL string) error {
	_, err := fmt.Fprintf(p.W, "Open this URL in your browser to continue:\n\n  %s\n\n", authURL)
	return err
}

// BrowserPresenter opens the system browser, and falls back to Fallback when
// no opener is available.
type BrowserPresenter struct {
	Fallback Presenter
}

// Present implements Presenter.
func (p BrowserPresenter) Present(ctx context.Context, authURL string) error {
	name, args := openCommand(authURL)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		if p.Fallback != nil {
			return p.Fallback.Present(ctx, authURL)
		}
		return fmt.Errorf("oauth: open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(target string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
