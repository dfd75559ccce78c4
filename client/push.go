package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"beacon/models"

	"go.uber.org/zap"
)

var ErrPermissionDenied = errors.New("push permission denied")

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// PermissionPrompter asks the user whether notifications may be shown.
type PermissionPrompter interface {
	RequestPermission(ctx context.Context) (Permission, error)
}

// EndpointSource creates a push endpoint bound to the engine's application server key.
type EndpointSource interface {
	Subscribe(ctx context.Context, applicationServerKey string) (models.SubscribeInput, error)
}

// PushRegistrar runs the opt-in flow: ask for permission, obtain an endpoint, register it.
type PushRegistrar struct {
	Engine   *EngineClient
	Prompter PermissionPrompter
	Source   EndpointSource
	Logger   *zap.Logger
}

func NewPushRegistrar(engine *EngineClient, prompter PermissionPrompter, source EndpointSource, logger *zap.Logger) *PushRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushRegistrar{Engine: engine, Prompter: prompter, Source: source, Logger: logger}
}

// Enable subscribes only after the user granted permission. Nothing is sent to the engine
// otherwise.
func (r *PushRegistrar) Enable(ctx context.Context) (*models.Subscription, error) {
	perm, err := r.Prompter.RequestPermission(ctx)
	if err != nil {
		return nil, fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		r.Logger.Info("Push permission not granted", zap.String("permission", string(perm)))
		return nil, ErrPermissionDenied
	}

	key, err := r.Engine.VAPIDPublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch application server key: %w", err)
	}
	in, err := r.Source.Subscribe(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("create push endpoint: %w", err)
	}
	sub, err := r.Engine.Subscribe(ctx, in)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("Push enabled", zap.String("subscriptionID", sub.ID))
	return sub, nil
}

func (r *PushRegistrar) Disable(ctx context.Context, endpoint string) error {
	if err := r.Engine.Unsubscribe(ctx, endpoint); err != nil {
		return err
	}
	r.Logger.Info("Push disabled")
	return nil
}

// TerminalPrompter asks on a terminal and reads a yes/no answer.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDefault, err
	}
	fmt.Fprint(p.Out, "Allow notifications on this device? [y/N] ")
	answer, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return PermissionDefault, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return PermissionGranted, nil
	case "":
		return PermissionDefault, nil
	}
	return PermissionDenied, nil
}

// StaticEndpoint hands back an endpoint obtained elsewhere, such as an FCM registration token
// or a subscription exported from a browser.
type StaticEndpoint struct {
	Input models.SubscribeInput
}

func (s StaticEndpoint) Subscribe(context.Context, string) (models.SubscribeInput, error) {
	if s.Input.Endpoint == "" {
		return models.SubscribeInput{}, errors.New("no push endpoint configured")
	}
	return s.Input, nil
}
