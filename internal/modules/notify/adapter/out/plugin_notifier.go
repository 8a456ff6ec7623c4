package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	notifyrpc "focuskit/internal/modules/notify/adapter/out/rpc"
	"focuskit/internal/modules/notify/domain"
	notifyout "focuskit/internal/modules/notify/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// PluginNotifier delivers through an external binary speaking the notifier
// gRPC contract. Each Send launches the binary and kills it afterwards.
type PluginNotifier struct {
	manifest domain.Manifest
	logOut   io.Writer
}

// NewPluginNotifier builds a notifier for manifest. Plugin host logs go to
// logOut; nil discards them.
func NewPluginNotifier(manifest domain.Manifest, logOut io.Writer) notifyout.Notifier {
	if logOut == nil {
		logOut = io.Discard
	}
	return &PluginNotifier{manifest: manifest, logOut: logOut}
}

func (n *PluginNotifier) Name() string { return n.manifest.Name }

func (n *PluginNotifier) Type() string { return "plugin" }

func (n *PluginNotifier) Send(ctx context.Context, msg domain.Message) error {
	client, closeFn, err := n.connect()
	if err != nil {
		return err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	response, err := client.Notify(callCtx, &notifyrpc.NotifyRequest{
		Kind:  string(msg.Kind),
		Title: msg.Title,
		Body:  msg.Body,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", domain.ErrNotifierTimeout, n.manifest.Name)
		}
		return fmt.Errorf("notify: %w", err)
	}
	if !response.Delivered {
		return fmt.Errorf("notifier %s did not deliver: %s", n.manifest.Name, response.Detail)
	}
	return nil
}

func (n *PluginNotifier) connect() (notifyrpc.NotifierClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  notifyrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          notifyrpc.PluginMap(nil),
		Cmd:              exec.Command(n.manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "notifier." + n.manifest.Name,
			Output: n.logOut,
			Level:  hclog.Warn,
		}),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start notifier plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(notifyrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense notifier: %w", err)
	}
	typed, ok := raw.(notifyrpc.NotifierClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("notifier rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
