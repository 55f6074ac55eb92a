package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	banner  = "ATM ready. Type help for the list of commands."
	prompt  = "> "
	dismiss = "[press Enter to continue]"
)

// Serve reads commands from r, one per line, and writes the responses to w
// until r is exhausted, quit is entered or ctx is done. With confirm set,
// every message waits for an empty line before the next command is read.
func (m *Mux) Serve(ctx context.Context, r io.Reader, w io.Writer, confirm bool) error {
	sc := bufio.NewScanner(r)

	fmt.Fprintln(w, banner)
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(w, prompt)
		if !sc.Scan() {
			return sc.Err()
		}

		resp, err := m.Dispatch(ctx, sc.Text())
		render(w, resp)
		if errors.Is(err, ErrQuit) {
			return nil
		}

		if confirm && resp.Message != "" {
			fmt.Fprint(w, dismiss)
			if !sc.Scan() {
				return sc.Err()
			}
		}
	}
}

func render(w io.Writer, resp Response) {
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
	}
	if resp.Balance != "" {
		fmt.Fprintln(w, resp.Balance)
	}
	for _, l := range resp.Lines {
		fmt.Fprintln(w, "  "+l)
	}
}
