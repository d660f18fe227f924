package main

import (
	"context"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	syncsvc "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
)

// resetGoogle deletes the user's stored OAuth grant and incremental cursor so
// the next sync forces a reconnect and a clean full pass.
func (cli *commandLine) resetGoogle(email string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = cli.syncRepo.DeleteCredential(ctx, usr.ID); err != nil {
		return err
	}
	return cli.syncRepo.DeleteSyncToken(ctx, usr.ID, syncsvc.DefaultCalendarID)
}
