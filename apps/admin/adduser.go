package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, name, timezone, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	if !core.IsValidTimezone(timezone) {
		return errors.Errorf("invalid timezone %q", timezone)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
	}
	if name != "" {
		usr.Name = name
	}
	usr.Timezone = timezone
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.CreatedAt.Equal(now) {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
