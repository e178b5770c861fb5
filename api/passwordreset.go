package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/mail"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/core/validate"
	"github.com/consumedhq/consumed/model"
)

const resetValidity = 2 * time.Hour

const resetMailTemplate = `Hello {name},

someone requested a password reset for your account. Follow the link below
within two hours to choose a new password:

{link}

If this was not you, you can ignore this mail.`

func (b *Backend) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "email", Source: validate.Body, Type: validate.Email, Required: true},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()

	e, err := b.store.FindOne(ctx, model.UserMeta, map[string]interface{}{"email": res.String("email")})
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "user", res.String("email"))
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	u := e.(*model.User)

	token, err := b.generator.TokenUnique(ctx, model.UserPasswordResetMeta.Table, "token")
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	reset := &model.UserPasswordReset{}
	err = model.Map(reset, map[string]interface{}{
		"user_id":    u.ID,
		"token":      token,
		"expires_at": time.Now().UTC().Add(resetValidity),
	}, []string{"user_id", "token", "expires_at"})
	if err == nil {
		err = b.store.Insert(ctx, reset)
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	body := mail.Build(resetMailTemplate, map[string]string{
		"name": u.DisplayName(),
		"link": fmt.Sprintf("%s/password-resets/reset?token=%s", b.baseURL, token),
	})
	// delivery is fire and forget, a mail outage must not fail the request
	err = b.mailer.Send(ctx, mail.Message{
		To:      u.Email,
		Subject: "Reset your password",
		Body:    body,
	})
	if err != nil {
		logger.FromContext(ctx).Errorln("reset mail delivery failed:", err)
	}
	output.NoContent(w)
}

func (b *Backend) passwordResetReset(w http.ResponseWriter, r *http.Request) {
	res, err := b.validator.Request(r,
		validate.Field{Name: "token", Source: validate.Body, Type: validate.String, Required: true},
		validate.Field{Name: "password", Source: validate.Body, Type: validate.String, Required: true},
	)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	ctx := r.Context()

	e, err := b.store.FindOne(ctx, model.UserPasswordResetMeta, map[string]interface{}{
		"token": res.String("token"),
	})
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "password reset", res.String("token"))
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	reset := e.(*model.UserPasswordReset)
	// a reset token can be claimed exactly once
	if reset.Claimed() {
		output.DisabledResource(w, "Reset token already claimed.")
		return
	}
	if reset.Expired() {
		output.DisabledResource(w, "Reset token has expired.")
		return
	}

	userEntity, err := b.store.GetByID(ctx, model.UserMeta, reset.UserID)
	if err == model.ErrNotFound {
		output.ModelNotFound(w, "user", reset.UserID)
		return
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	u := userEntity.(*model.User)

	hash, err := b.hashPassword(u.GUID, res.String("password"))
	if err != nil {
		b.serverError(w, r, err)
		return
	}
	err = model.Map(u, map[string]interface{}{"password": hash}, []string{"password"})
	if err == nil {
		err = b.store.Update(ctx, u)
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	err = model.Map(reset, map[string]interface{}{"claimed_at": time.Now().UTC()}, []string{"claimed_at"})
	if err == nil {
		err = b.store.Update(ctx, reset)
	}
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	// a password change invalidates every open session
	b.disableSessions(r, u.ID)
	output.NoContent(w)
}
