package service

import (
	"context"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"

	"github.com/sirupsen/logrus"
)

// EmailSender delivers verification and password reset tokens to users.
type EmailSender interface {
	Send(ctx context.Context, user *model.User, token string, flavor model.TokenFlavor) error
}

// LogEmailSender writes the dispatch to the log instead of sending mail.
type LogEmailSender struct{}

func (LogEmailSender) Send(_ context.Context, user *model.User, token string, flavor model.TokenFlavor) error {
	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
		"flavor":  flavor,
		"token":   maskToken(token),
	}).Info("Email dispatched")
	return nil
}
