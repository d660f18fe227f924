package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

type scheduleApi struct {
	svc        *schedule.Service
	userSvc    *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := scheduleApi{
		svc:        deps.ScheduleSvc,
		userSvc:    deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	sg := g.Group("/schedule", jwt)

	bg := sg.Group("/blocks")
	bg.POST("", api.createBlock)
	bg.GET("", api.queryBlocks)
	bg.GET("/:id", api.retrieveBlock)
	bg.PUT("/:id", api.updateBlock)
	bg.DELETE("/:id", api.destroyBlock)

	ag := sg.Group("/assignments")
	ag.POST("", api.createAssignment)
	ag.GET("", api.queryAssignments)
	ag.GET("/:id", api.retrieveAssignment)
	ag.PUT("/:id", api.updateAssignment)
	ag.DELETE("/:id", api.destroyAssignment)

	eg := sg.Group("/exams")
	eg.POST("", api.createExam)
	eg.GET("", api.queryExams)
	eg.GET("/:id", api.retrieveExam)
	eg.PUT("/:id", api.updateExam)
	eg.DELETE("/:id", api.destroyExam)
}

// Schedule block handlers

func (api *scheduleApi) createBlock(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewScheduleBlock
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScheduleBlock")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	blk, err := api.svc.CreateScheduleBlock(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating schedule block")
	}
	return ctx.JSON(http.StatusCreated, blk)
}

func (api *scheduleApi) queryBlocks(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	blocks, err := api.svc.QueryScheduleBlocks(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying schedule blocks")
	}
	if blocks == nil {
		blocks = []schedule.ScheduleBlock{}
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *scheduleApi) retrieveBlock(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	blk, err := api.svc.GetScheduleBlock(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, blk)
}

func (api *scheduleApi) updateBlock(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewScheduleBlock
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScheduleBlock")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	blk, err := api.svc.UpdateScheduleBlock(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, blk)
}

func (api *scheduleApi) destroyBlock(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteScheduleBlock(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting schedule block")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignment handlers

func (api *scheduleApi) createAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *scheduleApi) queryAssignments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []schedule.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *scheduleApi) retrieveAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asg, err := api.svc.GetAssignment(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *scheduleApi) updateAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	asg, err := api.svc.UpdateAssignment(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *scheduleApi) destroyAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteAssignment(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Exam handlers

func (api *scheduleApi) createExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	exm, err := api.svc.CreateExam(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, exm)
}

func (api *scheduleApi) queryExams(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	exams, err := api.svc.QueryExams(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []schedule.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *scheduleApi) retrieveExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	exm, err := api.svc.GetExam(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exm)
}

func (api *scheduleApi) updateExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data schedule.NewExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	exm, err := api.svc.UpdateExam(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exm)
}

func (api *scheduleApi) destroyExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteExam(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}
