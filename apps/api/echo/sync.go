package echoapi

import (
	"net/http"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	syncsvc "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

const defaultOperationsLimit = 20

type syncApi struct {
	conf       *core.Config
	svc        *syncsvc.Service
	userSvc    *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerSyncAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := syncApi{
		conf:       deps.Conf,
		svc:        deps.SyncSvc,
		userSvc:    deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// Google's push notifications carry no bearer token; the channel id is
	// the credential.
	g.POST("/sync/webhook", api.webhook)

	sg := g.Group("/sync", jwt, rateLimitMiddleware(deps.Conf, deps.RateLimit))
	sg.POST("/connect", api.connect)
	sg.DELETE("/connect", api.disconnect)
	sg.POST("/full", api.fullSync)
	sg.POST("/incremental", api.incrementalSync)
	sg.GET("/conflicts", api.queryConflicts)
	sg.POST("/conflicts/resolve", api.resolveConflict)
	sg.GET("/operations", api.queryOperations)
	sg.POST("/webhook/setup", api.setupWebhook)
}

// Handlers

func (api *syncApi) connect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ConnectRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConnectRequest")
	}
	if err = data.Validate(api.validate, usr.ID); err != nil {
		return err
	}

	if err = api.svc.Connect(ctx.Request().Context(), usr.ID, data.AccessToken, data.RefreshToken, data.Expiry); err != nil {
		return errors.Wrap(err, "connecting google account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *syncApi) disconnect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Disconnect(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "disconnecting google account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *syncApi) fullSync(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	summary, err := api.svc.FullSync(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *syncApi) incrementalSync(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	summary, err := api.svc.IncrementalSync(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *syncApi) queryConflicts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	unresolvedOnly, _ := strconv.ParseBool(ctx.QueryParam("unresolved"))
	conflicts, err := api.svc.Conflicts(ctx.Request().Context(), usr.ID, unresolvedOnly)
	if err != nil {
		return errors.Wrap(err, "querying conflicts")
	}
	if conflicts == nil {
		conflicts = []syncsvc.Conflict{}
	}
	return ctx.JSON(http.StatusOK, conflicts)
}

func (api *syncApi) resolveConflict(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ResolveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveRequest")
	}
	// callers may only resolve their own conflicts
	if data.UserID != "" && data.UserID != usr.ID {
		return errHttpForbidden
	}
	if err = data.Resolution.Validate(api.validate, api.translator); err != nil {
		return err
	}

	conflict, err := api.svc.ResolveConflict(ctx.Request().Context(), usr.ID, data.Resolution)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, conflict)
}

func (api *syncApi) queryOperations(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	limit := defaultOperationsLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ops, err := api.svc.Operations(ctx.Request().Context(), usr.ID, limit)
	if err != nil {
		return errors.Wrap(err, "querying operations")
	}
	if ops == nil {
		ops = []syncsvc.Operation{}
	}
	return ctx.JSON(http.StatusOK, ops)
}

func (api *syncApi) setupWebhook(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ch, err := api.svc.SetupWebhook(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *syncApi) webhook(ctx echo.Context) error {
	channelID := ctx.Request().Header.Get("X-Goog-Channel-ID")
	resourceState := ctx.Request().Header.Get("X-Goog-Resource-State")
	resourceID := ctx.Request().Header.Get("X-Goog-Resource-ID")
	if channelID == "" || resourceState == "" || resourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing notification headers")
	}

	if err := api.svc.HandleWebhook(ctx.Request().Context(), channelID, resourceState); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

type (
	ConnectRequest struct {
		UserID       string    `json:"user_id"`
		AccessToken  string    `json:"access_token" validate:"required"`
		RefreshToken string    `json:"refresh_token" validate:"required"`
		Expiry       time.Time `json:"expiry" validate:"required"`
	}

	ResolveRequest struct {
		UserID string `json:"user_id"`
		syncsvc.Resolution
	}
)

func (cr *ConnectRequest) Validate(validate *validator.Validate, callerID string) error {
	if cr.UserID != "" && cr.UserID != callerID {
		return errHttpForbidden
	}
	return validate.Struct(cr)
}
