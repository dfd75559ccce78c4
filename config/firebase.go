package config

// FCMEnabled reports whether a firebase credentials file was configured.
func FCMEnabled() bool {
	return AppConfig.FirebaseCredentialsFile != ""
}

// WebPushEnabled reports whether a VAPID key pair was configured.
func WebPushEnabled() bool {
	return AppConfig.VAPIDPublicKey != "" && AppConfig.VAPIDPrivateKey != ""
}
