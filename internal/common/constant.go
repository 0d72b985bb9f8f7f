package common

// TelegramSecretHeaderName is the header Telegram sets on webhook deliveries
// when a secret token was registered with setWebhook.
const TelegramSecretHeaderName = "X-Telegram-Bot-Api-Secret-Token"

// ImageKeyPrefix is the default object-key prefix for entry images.
const ImageKeyPrefix = "supplier_bot/"
