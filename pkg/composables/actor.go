package composables

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sevakendra/beneficiary-portal/pkg/constants"
)

var (
	ErrNoActor   = errors.New("no actor found in context")
	ErrForbidden = errors.New("actor lacks the required permission")
)

// Actor is the already-authorized caller handed to the core by the auth
// layer. The core never authenticates; it trusts the id and permission set
// placed here by upstream middleware.
type Actor struct {
	ID            int64
	BeneficiaryID int64
	Permissions   []string
}

func (a *Actor) Has(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actor)
}

func UseActor(ctx context.Context) (*Actor, error) {
	actor, ok := ctx.Value(constants.ActorKey).(*Actor)
	if !ok || actor == nil {
		return nil, ErrNoActor
	}
	return actor, nil
}

// CanUser returns ErrForbidden unless the context actor holds the
// permission.
func CanUser(ctx context.Context, permission string) error {
	actor, err := UseActor(ctx)
	if err != nil {
		return err
	}
	if !actor.Has(permission) {
		return ErrForbidden
	}
	return nil
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, falling back to the standard
// logger so library code never has to nil-check.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger
}
