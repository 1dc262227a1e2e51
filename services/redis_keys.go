package services

import "time"

const (
	KeyUserNotifications = "notifications:%s"

	DefaultNotifyTimeout  = 5 * time.Second
	DefaultReminderWindow = 15 * time.Minute
)
