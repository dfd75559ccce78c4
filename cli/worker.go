package cli

import (
	"context"
	"time"

	"beacon/config"
	"beacon/cron"
	"beacon/database"
	notificationRepo "beacon/database/repository/notification"
	"beacon/utils"

	"github.com/spf13/cobra"
)

func NewWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the email delivery worker",
		Long: `Consume email:send tasks from the queue, post them to the mail gateway and record
email delivery on the notification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if err := database.InitDB(); err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = database.Close(closeCtx)
			}()

			cfg := config.AppConfig
			worker := cron.NewEmailWorker(
				cron.NewMailGateway(cfg.MailGatewayURL, cfg.MailGatewayToken),
				notificationRepo.NewMongoNotificationRepo(),
				utils.GetLogger(),
			)
			return cron.RunEmailWorker(ctx, worker)
		},
	}
}
