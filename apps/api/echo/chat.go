package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

type chatApi struct {
	svc      core.ChatCompleter
	schedSvc *schedule.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{
		svc:      deps.ChatSvc,
		schedSvc: deps.ScheduleSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}
	g.POST("/chat", api.chat, jwt, rateLimitMiddleware(deps.Conf, deps.RateLimit))
}

func (api *chatApi) chat(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ChatRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	system, err := api.systemPrompt(ctx, usr)
	if err != nil {
		return err
	}

	messages := append(data.History, core.ChatMessage{Role: "user", Content: data.Message})
	reply, err := api.svc.Complete(ctx.Request().Context(), system, messages)
	if err != nil {
		return errors.Wrap(err, "completing chat")
	}
	return ctx.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// systemPrompt grounds the assistant in the student's upcoming items.
func (api *chatApi) systemPrompt(ctx echo.Context, usr user.User) (string, error) {
	reqCtx := ctx.Request().Context()

	blocks, err := api.schedSvc.QueryScheduleBlocks(reqCtx, usr.ID)
	if err != nil {
		return "", errors.Wrap(err, "querying schedule blocks")
	}
	asgs, err := api.schedSvc.QueryAssignments(reqCtx, usr.ID)
	if err != nil {
		return "", errors.Wrap(err, "querying assignments")
	}
	exams, err := api.schedSvc.QueryExams(reqCtx, usr.ID)
	if err != nil {
		return "", errors.Wrap(err, "querying exams")
	}

	b := new(strings.Builder)
	b.WriteString("You are a study-planning assistant for the student ")
	b.WriteString(usr.Name)
	b.WriteString(". Their timezone is ")
	b.WriteString(usr.Timezone)
	b.WriteString(". Answer questions about their schedule concisely.\n")

	if len(blocks) > 0 {
		b.WriteString("\nSchedule blocks:\n")
		for _, blk := range blocks {
			fmt.Fprintf(b, "- %s (%s to %s)\n", blk.Title,
				blk.StartTime.Format("Mon 15:04"), blk.EndTime.Format("15:04"))
		}
	}
	if len(asgs) > 0 {
		b.WriteString("\nAssignments:\n")
		for _, asg := range asgs {
			fmt.Fprintf(b, "- %s due %s\n", asg.Title, asg.DueAt.Format(time.DateTime))
		}
	}
	if len(exams) > 0 {
		b.WriteString("\nExams:\n")
		for _, exm := range exams {
			fmt.Fprintf(b, "- %s on %s (%d min)\n", exm.Title,
				exm.ExamDate.Format(time.DateTime), exm.DurationMinutes)
		}
	}
	return b.String(), nil
}

type (
	ChatRequest struct {
		Message string             `json:"message" validate:"required"`
		History []core.ChatMessage `json:"history"`
	}

	ChatResponse struct {
		Reply string `json:"reply"`
	}
)
