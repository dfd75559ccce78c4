package cli

import (
	"context"
	"errors"
	"fmt"

	"beacon/client"
	"beacon/config"
	"beacon/models"
	"beacon/offline"
	"beacon/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// AgentOptions holds flags shared by the agent subcommands.
type AgentOptions struct {
	QueuePath string
	EngineURL string
}

func NewAgentCommand() *cobra.Command {
	opts := &AgentOptions{}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Producer-side agent with a durable offline queue",
		Long: `The agent queues notification requests locally and replays them to the engine when it
is reachable, so nothing a producer creates is lost while offline.

Example:
  beacon agent run
  beacon agent send --user u1 --category mention --message "Dana mentioned you"
  beacon agent push enable --endpoint https://fcm.googleapis.com/fcm/send/... --p256dh ... --auth ...`,
	}
	cmd.PersistentFlags().StringVar(&opts.QueuePath, "queue", "", "path to the SQLite queue (default OFFLINE_QUEUE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.EngineURL, "engine", "", "engine base URL (default ENGINE_BASE_URL)")

	cmd.AddCommand(newAgentRunCommand(opts))
	cmd.AddCommand(newAgentSendCommand(opts))
	cmd.AddCommand(newAgentPushCommand(opts))
	return cmd
}

func (o *AgentOptions) engine(logger *zap.Logger) *client.EngineClient {
	url := o.EngineURL
	if url == "" {
		url = config.AppConfig.EngineBaseURL
	}
	return client.NewEngineClient(url, config.AppConfig.EngineToken, logger)
}

func (o *AgentOptions) openQueue() (*offline.Store, error) {
	path := o.QueuePath
	if path == "" {
		path = config.AppConfig.OfflineQueuePath
	}
	return offline.Open(path)
}

func retryPolicy() offline.RetryPolicy {
	p := offline.DefaultRetryPolicy()
	if config.AppConfig.QueueMaxAttempts > 0 {
		p.MaxAttempts = config.AppConfig.QueueMaxAttempts
	}
	if config.AppConfig.QueueMaxAge > 0 {
		p.MaxAge = config.AppConfig.QueueMaxAge
	}
	return p
}

func newAgentRunCommand(opts *AgentOptions) *cobra.Command {
	var stdinEvents bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the offline queue whenever the engine is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			logger := utils.GetLogger()

			store, err := opts.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			engine := opts.engine(logger)
			worker := offline.NewSyncWorker(store, engine, retryPolicy(), logger)
			worker.Interval = config.AppConfig.SyncInterval
			worker.OnEvict = func(item models.QueueItem, reason string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "notification for %s was not delivered (%s): %s\n",
					item.Request.UserID, reason, item.LastError)
			}

			dispatcher := offline.NewDispatcher(logger)
			events := &agentEvents{store: store, engine: engine, worker: worker, logger: logger, out: cmd.OutOrStdout()}
			events.register(dispatcher)
			for _, t := range []offline.EventType{offline.EventInstall, offline.EventActivate} {
				if err := dispatcher.Dispatch(ctx, offline.Event{Type: t}); err != nil {
					logger.Warn("Lifecycle handlers failed", zap.String("event", string(t)), zap.Error(err))
				}
			}
			if stdinEvents {
				go func() {
					if err := readEvents(ctx, cmd.InOrStdin(), dispatcher, logger); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("Stopped reading events", zap.Error(err))
					}
				}()
			}

			go client.WatchConnectivity(ctx, engine, worker.Interval/4, func() {
				if err := dispatcher.Dispatch(ctx, offline.Event{Type: offline.EventOnline}); err != nil {
					logger.Warn("Online handlers failed", zap.Error(err))
				}
			})

			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdinEvents, "stdin-events", false, "dispatch newline-delimited JSON events read from stdin")
	return cmd
}

func newAgentSendCommand(opts *AgentOptions) *cobra.Command {
	var req models.CreateRequest
	var category, priority string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Create a notification, queueing it if the engine is unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.GetLogger()
			store, err := opts.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			req.Category = models.Category(category)
			req.Priority = models.Priority(priority)
			if req.CreatedBy == "" && config.AppConfig.EngineToken != "" {
				req.CreatedBy = "agent"
			}

			producer := offline.NewProducer(store, opts.engine(logger), retryPolicy(), logger)
			res, err := producer.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Queued {
				fmt.Fprintf(out, "queued %s; it will be sent when the engine is reachable\n", res.ItemID)
				return nil
			}
			fmt.Fprintf(out, "created %s (in_app=%t push=%t email=%t)\n", res.Notification.ID,
				res.Notification.DeliveryStatus.InApp.Delivered,
				res.Notification.DeliveryStatus.Push.Delivered,
				res.Notification.DeliveryStatus.Email.Attempted)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user", "", "recipient user id (required)")
	cmd.Flags().StringVar(&req.Message, "message", "", "notification body (required)")
	cmd.Flags().StringVar(&req.Title, "title", "", "title (defaults per category)")
	cmd.Flags().StringVar(&category, "category", string(models.CategoryInfo), "info|success|warning|error|message|mention")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityNormal), "critical|high|normal|low")
	cmd.Flags().StringVar(&req.EntityType, "entity-type", "", "referenced entity type, e.g. chat")
	cmd.Flags().StringVar(&req.EntityID, "entity-id", "", "referenced entity id")
	cmd.Flags().StringVar(&req.CreatedBy, "actor", "", "acting user recorded on the notification")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newAgentPushCommand(opts *AgentOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Opt this device in or out of push notifications",
	}

	var in models.SubscribeInput
	var kind string
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Ask for permission and register a push endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Kind = models.SubscriptionKind(kind)
			registrar := client.NewPushRegistrar(
				opts.engine(utils.GetLogger()),
				client.TerminalPrompter{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
				client.StaticEndpoint{Input: in},
				utils.GetLogger(),
			)
			sub, err := registrar.Enable(cmd.Context())
			if errors.Is(err, client.ErrPermissionDenied) {
				fmt.Fprintln(cmd.OutOrStdout(), "push notifications stay off")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "push enabled (%s)\n", sub.ID)
			return nil
		},
	}
	enable.Flags().StringVar(&kind, "kind", string(models.SubscriptionWebPush), "webpush|fcm")
	enable.Flags().StringVar(&in.Endpoint, "endpoint", "", "push endpoint URL or FCM token (required)")
	enable.Flags().StringVar(&in.Keys.P256dh, "p256dh", "", "client public key (webpush)")
	enable.Flags().StringVar(&in.Keys.Auth, "auth", "", "client auth secret (webpush)")
	enable.Flags().StringVar(&in.UserAgent, "user-agent", "beacon-agent", "label stored with the subscription")
	_ = enable.MarkFlagRequired("endpoint")

	var endpoint string
	disable := &cobra.Command{
		Use:   "disable",
		Short: "Unregister a push endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registrar := client.NewPushRegistrar(opts.engine(utils.GetLogger()), nil, nil, utils.GetLogger())
			if err := registrar.Disable(cmd.Context(), endpoint); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "push disabled")
			return nil
		},
	}
	disable.Flags().StringVar(&endpoint, "endpoint", "", "push endpoint to remove (required)")
	_ = disable.MarkFlagRequired("endpoint")

	cmd.AddCommand(enable, disable)
	return cmd
}
