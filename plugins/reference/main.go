package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	notifyrpc "focuskit/internal/modules/notify/adapter/out/rpc"

	"github.com/hashicorp/go-plugin"
)

// outputEnv names a file that receives one line per notification instead of
// the desktop.
const outputEnv = "FOCUSKIT_NOTIFIER_OUT"

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *notifyrpc.Empty) (*notifyrpc.Metadata, error) {
	return &notifyrpc.Metadata{Name: "desktop", Version: "1.0.0"}, nil
}

func (s *server) Notify(ctx context.Context, in *notifyrpc.NotifyRequest) (*notifyrpc.NotifyResponse, error) {
	if path := os.Getenv(outputEnv); path != "" {
		if err := appendLine(path, fmt.Sprintf("%s\t%s\t%s", in.Kind, in.Title, in.Body)); err != nil {
			return &notifyrpc.NotifyResponse{Detail: err.Error()}, nil
		}
		return &notifyrpc.NotifyResponse{Delivered: true}, nil
	}
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", in.Title, in.Body)
		return &notifyrpc.NotifyResponse{Delivered: true, Detail: "notify-send not found"}, nil
	}
	urgency := "normal"
	if in.Kind == "error" {
		urgency = "critical"
	}
	if out, err := exec.CommandContext(ctx, bin, "--app-name=focuskit", "--urgency="+urgency, in.Title, in.Body).CombinedOutput(); err != nil {
		return &notifyrpc.NotifyResponse{Detail: fmt.Sprintf("notify-send: %v: %s", err, out)}, nil
	}
	return &notifyrpc.NotifyResponse{Delivered: true}, nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: notifyrpc.HandshakeConfig,
		Plugins:         notifyrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
