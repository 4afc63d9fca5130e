// Package admin exposes the room lifecycle over a JSON HTTP API.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/logger"
	"github.com/sakshamg567/snakearena/pkg/utils"
)

var errUnknownRoom = errors.New("room not found")

// ResultSource lists recently finished games.
type ResultSource interface {
	Recent(ctx context.Context, n int) ([]results.Result, error)
}

type Handler struct {
	rm      *room.RoomManager
	results ResultSource
}

const defaultRecent = 20

// NewApp builds the fiber app serving the admin API for rm. src may be nil
// when results are not kept.
func NewApp(rm *room.RoomManager, src ResultSource) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())
	Register(app, rm, src)
	return app
}

// Register mounts the admin routes on app.
func Register(app *fiber.App, rm *room.RoomManager, src ResultSource) {
	h := &Handler{rm: rm, results: src}

	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := app.Group("/api")
	api.Get("/rooms", h.listRooms)
	api.Post("/rooms", h.addRoom)
	api.Get("/rooms/:id", h.getRoom)
	api.Get("/rooms/:id/history", h.history)
	api.Post("/rooms/:id/subscribe", h.subscribe)
	api.Post("/rooms/:id/unsubscribe", h.unsubscribe)
	api.Post("/rooms/:id/start", h.start)
	api.Post("/rooms/:id/reset", h.reset)

	api.Get("/waiters", h.listWaiters)
	api.Delete("/waiters", h.clearWaiters)
	api.Delete("/waiters/:addr", h.removeWaiter)

	api.Get("/results", h.recentResults)
}

type waiterBody struct {
	Waiter string `json:"waiter"`
}

func ok(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{"ok": true, "message": msg})
}

func fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": err.Error()})
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownRoom), errors.Is(err, room.ErrNotWaiting), errors.Is(err, room.ErrNotInRoom):
		return fiber.StatusNotFound
	case errors.Is(err, room.ErrRoomNotWaiting), errors.Is(err, room.ErrRoomEmpty):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fail(c, fe.Code, fe)
	}
	logger.Error("%s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, err)
}

func (h *Handler) lookup(c *fiber.Ctx) (*room.Room, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return nil, errUnknownRoom
	}
	r, found := h.rm.GetRoom(id)
	if !found {
		return nil, errUnknownRoom
	}
	return r, nil
}

func (h *Handler) waiter(c *fiber.Ctx) (string, error) {
	var body waiterBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed body: "+err.Error())
	}
	if body.Waiter == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "missing waiter address")
	}
	return body.Waiter, nil
}

func (h *Handler) listRooms(c *fiber.Ctx) error {
	return c.JSON(h.rm.Summaries())
}

// addRoom accepts a text layout as the request body.
func (h *Handler) addRoom(c *fiber.Ctx) error {
	l, err := utils.ParseLayout(string(c.Body()))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if l.Name == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("layout needs a @name header"))
	}
	id, err := h.rm.AddRoom(room.TemplateFromLayout(l))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	logger.Info("Added room %d: %q", id, l.Name)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "message": "room created", "id": id})
}

func (h *Handler) getRoom(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	return c.JSON(r.Snapshot())
}

func (h *Handler) history(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	return c.JSON(r.History())
}

func (h *Handler) subscribe(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	addr, err := h.waiter(c)
	if err != nil {
		return err
	}
	if err := h.rm.Waiting.Subscribe(addr, r); err != nil {
		return fail(c, statusFor(err), err)
	}
	return ok(c, "subscribed "+addr+" to "+r.Name)
}

func (h *Handler) unsubscribe(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	addr, err := h.waiter(c)
	if err != nil {
		return err
	}
	if err := r.Unsubscribe(addr, h.rm.Waiting); err != nil {
		return fail(c, statusFor(err), err)
	}
	return ok(c, "unsubscribed "+addr+" from "+r.Name)
}

func (h *Handler) start(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	if err := h.rm.StartRoom(r); err != nil {
		return fail(c, statusFor(err), err)
	}
	return ok(c, "started "+r.Name)
}

func (h *Handler) reset(c *fiber.Ctx) error {
	r, err := h.lookup(c)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	r.Reset()
	return ok(c, "reset "+r.Name)
}

func (h *Handler) listWaiters(c *fiber.Ctx) error {
	return c.JSON(h.rm.Waiting.Waiters())
}

func (h *Handler) removeWaiter(c *fiber.Ctx) error {
	addr, err := url.PathUnescape(c.Params("addr"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if !h.rm.Waiting.Remove(addr) {
		return fail(c, fiber.StatusNotFound, room.ErrNotWaiting)
	}
	return ok(c, "removed "+addr)
}

func (h *Handler) clearWaiters(c *fiber.Ctx) error {
	n := h.rm.Waiting.Len()
	h.rm.Waiting.Clear()
	return ok(c, "removed "+strconv.Itoa(n)+" waiters")
}

// recentResults lists finished games, newest first. ?n= limits the count.
func (h *Handler) recentResults(c *fiber.Ctx) error {
	if h.results == nil {
		return fail(c, fiber.StatusNotFound, errors.New("results are not recorded"))
	}
	n := c.QueryInt("n", defaultRecent)
	if n <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "n must be positive")
	}
	list, err := h.results.Recent(c.UserContext(), n)
	if err != nil {
		return err
	}
	return c.JSON(list)
}
