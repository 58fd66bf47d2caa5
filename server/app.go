package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meikuraledutech/canvas"
	"github.com/meikuraledutech/canvas/chain"
	"github.com/meikuraledutech/canvas/group"
	"github.com/meikuraledutech/canvas/internal/ctxlog"
	"github.com/meikuraledutech/canvas/internal/metrics"
	"github.com/meikuraledutech/canvas/shortcut"
)

// store is what the server needs from a persistence backend.
// postgres.PGStore and sqlite.Store both satisfy it.
type store interface {
	canvas.Store
	chain.Store
}

type deps struct {
	store     store
	shortcuts shortcut.Table
	registry  *prometheus.Registry
	logger    *slog.Logger
	monitors  int
}

type server struct {
	store     store
	shortcuts shortcut.Table
	metrics   *metrics.Metrics

	// mu serialises read-modify-write of canvases, groups and monitors.
	mu       sync.Mutex
	groups   map[string]*group.Manager
	monitors *lru.Cache[string, *chain.Monitor]
}

func newApp(d deps) (*fiber.App, error) {
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
	}
	if d.monitors <= 0 {
		d.monitors = 1024
	}
	if d.shortcuts == nil {
		d.shortcuts = shortcut.Defaults()
	}

	m, err := metrics.New("canvas", d.registry)
	if err != nil {
		return nil, err
	}
	monitors, err := lru.New[string, *chain.Monitor](d.monitors)
	if err != nil {
		return nil, err
	}
	s := &server{
		store:     d.store,
		shortcuts: d.shortcuts,
		metrics:   m,
		groups:    make(map[string]*group.Manager),
		monitors:  monitors,
	}

	app := fiber.New()
	app.Use(s.observe(d.logger))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := s.store.CreateSchema(c.Context()); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := s.store.DropSchema(c.Context()); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Registry & shortcuts ──────────────────────────────────────────
	app.Get("/registry", func(c fiber.Ctx) error {
		if cat := c.Query("category"); cat != "" {
			return c.JSON(nonNil(canvas.DefinitionsByCategory(canvas.Category(cat))))
		}
		return c.JSON(canvas.Definitions())
	})

	app.Get("/registry/:kind", func(c fiber.Ctx) error {
		kind := canvas.NodeKind(c.Params("kind"))
		if !kind.Valid() {
			return c.Status(404).JSON(fiber.Map{"error": "unknown node kind"})
		}
		return c.JSON(canvas.Lookup(kind))
	})

	app.Get("/shortcuts", func(c fiber.Ctx) error {
		return c.JSON(s.shortcuts)
	})

	app.Get("/shortcuts/match", s.matchShortcut)

	app.Get("/templates", func(c fiber.Ctx) error {
		return c.JSON(canvas.Templates())
	})

	// ── Canvases (bulk) ───────────────────────────────────────────────
	app.Put("/canvases/:id", func(c fiber.Ctx) error {
		var state canvas.CanvasState
		if err := c.Bind().JSON(&state); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if state.Viewport == (canvas.Viewport{}) {
			state.Viewport = canvas.DefaultViewport
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.store.SaveCanvas(c.Context(), c.Params("id"), state); err != nil {
			return s.fail(c, err)
		}
		s.reconcileGroups(c.Params("id"), state.Nodes)
		return c.SendStatus(204)
	})

	app.Get("/canvases/:id", func(c fiber.Ctx) error {
		state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if state == nil {
			return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
		}
		return c.JSON(state)
	})

	app.Delete("/canvases/:id", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.store.DeleteCanvas(c.Context(), c.Params("id")); err != nil {
			return s.fail(c, err)
		}
		delete(s.groups, c.Params("id"))
		return c.SendStatus(204)
	})

	app.Put("/canvases/:id/viewport", func(c fiber.Ctx) error {
		var v canvas.Viewport
		if err := c.Bind().JSON(&v); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
			g.SetViewport(v)
			return 204, nil, nil
		})
	})

	app.Get("/canvases/:id/search", s.searchCanvas)
	app.Post("/canvases/:id/bounds", s.bounds)
	app.Post("/canvases/:id/templates", s.addTemplate)

	// ── Workflow ──────────────────────────────────────────────────────
	app.Get("/canvases/:id/execution", s.executionPlan)
	app.Post("/canvases/:id/execution/ready", s.readyNodes)
	app.Get("/canvases/:id/targets", s.validTargets)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/canvases/:id/nodes", s.addNode)
	app.Patch("/canvases/:id/nodes/:node", s.updateNode)

	app.Delete("/canvases/:id/nodes/:node", func(c fiber.Ctx) error {
		return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
			if !g.RemoveNode(c.Params("node")) {
				return 0, nil, canvas.ErrNodeNotFound
			}
			return 204, nil, nil
		})
	})

	app.Get("/canvases/:id/nodes/:node/group", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		g, ok := s.groupsOf(c.Params("id")).GroupForNode(c.Params("node"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "node is not in a group"})
		}
		return c.JSON(g)
	})

	// ── Connections ───────────────────────────────────────────────────
	app.Post("/canvases/:id/connections", s.addConnection)

	app.Delete("/canvases/:id/connections/:conn", func(c fiber.Ctx) error {
		return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
			if !g.RemoveConnection(c.Params("conn")) {
				return 404, fiber.Map{"error": "connection not found"}, nil
			}
			return 204, nil, nil
		})
	})

	// ── Groups ────────────────────────────────────────────────────────
	app.Get("/canvases/:id/groups", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.JSON(s.groupsOf(c.Params("id")).All())
	})
	app.Post("/canvases/:id/groups", s.createGroup)
	app.Post("/canvases/:id/groups/:group/nodes", s.groupMembers(true))
	app.Post("/canvases/:id/groups/:group/remove", s.groupMembers(false))
	app.Post("/canvases/:id/groups/:group/toggle", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		collapsed, err := s.groupsOf(c.Params("id")).Toggle(c.Params("group"))
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"collapsed": collapsed})
	})
	app.Post("/canvases/:id/groups/:group/front", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.groupsOf(c.Params("id")).BringToFront(c.Params("group")); err != nil {
			return s.fail(c, err)
		}
		return c.SendStatus(204)
	})
	app.Patch("/canvases/:id/groups/:group", s.updateGroup)
	app.Delete("/canvases/:id/groups/:group", func(c fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.groupsOf(c.Params("id")).Delete(c.Params("group")) {
			return c.Status(404).JSON(fiber.Map{"error": "group not found"})
		}
		return c.SendStatus(204)
	})

	// ── Render chains ─────────────────────────────────────────────────
	app.Post("/chains/:chain/artifacts", func(c fiber.Ctx) error {
		var a chain.Artifact
		if err := c.Bind().JSON(&a); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		a.ChainID = c.Params("chain")
		if err := s.store.CreateArtifact(c.Context(), &a); err != nil {
			return s.fail(c, err)
		}
		return c.Status(201).JSON(a)
	})

	app.Get("/chains/:chain/artifacts", func(c fiber.Ctx) error {
		arts, err := s.store.ListArtifacts(c.Context(), c.Params("chain"))
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(arts)
	})

	app.Get("/chains/:chain/versions", func(c fiber.Ctx) error {
		arts, err := s.store.ListArtifacts(c.Context(), c.Params("chain"))
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(chain.Versions(arts))
	})

	app.Get("/chains/:chain/versions/:n", func(c fiber.Ctx) error {
		n, err := strconv.Atoi(c.Params("n"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "version must be a number"})
		}
		arts, err := s.store.ListArtifacts(c.Context(), c.Params("chain"))
		if err != nil {
			return s.fail(c, err)
		}
		a, ok := chain.ByVersion(arts, n)
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "version not found"})
		}
		return c.JSON(chain.Version{Number: n, Artifact: a})
	})

	app.Get("/chains/:chain/latest", func(c fiber.Ctx) error {
		arts, err := s.store.ListArtifacts(c.Context(), c.Params("chain"))
		if err != nil {
			return s.fail(c, err)
		}
		a, ok := chain.Latest(arts)
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "chain has no completed artifact"})
		}
		n, _ := chain.VersionOf(a, arts)
		return c.JSON(chain.Version{Number: n, Artifact: a})
	})

	app.Post("/chains/:chain/recovery", s.syncRecovery)

	app.Get("/artifacts/:id", func(c fiber.Ctx) error {
		a, err := s.store.GetArtifact(c.Context(), c.Params("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if a == nil {
			return c.Status(404).JSON(fiber.Map{"error": "artifact not found"})
		}
		return c.JSON(a)
	})

	app.Get("/artifacts/:id/version", func(c fiber.Ctx) error {
		a, err := s.store.GetArtifact(c.Context(), c.Params("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if a == nil {
			return c.Status(404).JSON(fiber.Map{"error": "artifact not found"})
		}
		arts, err := s.store.ListArtifacts(c.Context(), a.ChainID)
		if err != nil {
			return s.fail(c, err)
		}
		n, ok := chain.VersionOf(*a, arts)
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "artifact has no version"})
		}
		return c.JSON(chain.Version{Number: n, Artifact: *a})
	})

	app.Put("/artifacts/:id", func(c fiber.Ctx) error {
		var body struct {
			Status       chain.Status `json:"status"`
			OutputRef    string       `json:"output_ref"`
			ErrorMessage string       `json:"error_message"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		err := s.store.UpdateArtifact(c.Context(), c.Params("id"), body.Status, body.OutputRef, body.ErrorMessage)
		if err != nil {
			return s.fail(c, err)
		}
		return c.SendStatus(204)
	})

	return app, nil
}

// ── Middleware ────────────────────────────────────────────────────────

// observe attaches a request-scoped logger and records request metrics.
func (s *server) observe(base *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		log := base.With("request_id", uuid.NewString(), "method", c.Method(), "path", c.Path())
		c.SetContext(ctxlog.WithLogger(c.Context(), log))

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		s.metrics.ObserveRequest(c.Method(), route, status, time.Since(start))
		log.Debug("request", "status", status, "duration", time.Since(start))
		return err
	}
}

// ── Error mapping ─────────────────────────────────────────────────────

func statusOf(err error) int {
	switch {
	case errors.Is(err, canvas.ErrCycleDetected),
		errors.Is(err, canvas.ErrIncompatiblePorts),
		errors.Is(err, canvas.ErrDuplicateConnection):
		return 422
	case errors.Is(err, canvas.ErrInvalidNode),
		errors.Is(err, canvas.ErrInvalidPort),
		errors.Is(err, canvas.ErrPayloadKindMismatch),
		errors.Is(err, canvas.ErrUnknownKind),
		errors.Is(err, canvas.ErrDuplicateNode),
		errors.Is(err, chain.ErrInvalidStatus),
		errors.Is(err, group.ErrEmptyGroup),
		errors.Is(err, shortcut.ErrInvalidChord):
		return 400
	case errors.Is(err, canvas.ErrNodeNotFound),
		errors.Is(err, canvas.ErrUnknownTemplate),
		errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, chain.ErrArtifactNotFound):
		return 404
	default:
		return 500
	}
}

// rejectReason labels a refused connection for metrics.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, canvas.ErrCycleDetected):
		return "cycle"
	case errors.Is(err, canvas.ErrIncompatiblePorts):
		return "incompatible"
	case errors.Is(err, canvas.ErrDuplicateConnection):
		return "duplicate"
	case errors.Is(err, canvas.ErrInvalidPort):
		return "invalid_port"
	case errors.Is(err, canvas.ErrInvalidNode):
		return "invalid_node"
	default:
		return "other"
	}
}

func (s *server) fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == 500 {
		ctxlog.FromContext(c.Context()).Error("request failed", "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// ── Helpers ───────────────────────────────────────────────────────────

// mutate loads a canvas, applies fn and saves the result when fn succeeds
// with a 2xx status. Group membership is reconciled after each save.
func (s *server) mutate(c fiber.Ctx, fn func(g *canvas.Graph) (int, any, error)) error {
	id := c.Params("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.GetCanvas(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if state == nil {
		return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
	}
	g, err := canvas.Load(*state)
	if err != nil {
		return s.fail(c, err)
	}

	status, body, err := fn(g)
	if err != nil {
		return s.fail(c, err)
	}
	if status >= 300 {
		return c.Status(status).JSON(body)
	}

	snap := g.Snapshot()
	if err := s.store.SaveCanvas(c.Context(), id, snap); err != nil {
		return s.fail(c, err)
	}
	if gone := s.reconcileGroups(id, snap.Nodes); len(gone) > 0 {
		ctxlog.FromContext(c.Context()).Info("groups emptied by node removal", "canvas", id, "groups", gone)
	}

	if body == nil {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(body)
}

// groupsOf returns the group manager of a canvas. Callers hold s.mu.
func (s *server) groupsOf(canvasID string) *group.Manager {
	m, ok := s.groups[canvasID]
	if !ok {
		m = group.NewManager()
		s.groups[canvasID] = m
	}
	return m
}

// reconcileGroups drops stale members after a save. Callers hold s.mu.
func (s *server) reconcileGroups(canvasID string, nodes []canvas.Node) []string {
	m, ok := s.groups[canvasID]
	if !ok {
		return nil
	}
	return m.Reconcile(nodes)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// decodeData decodes a request payload for kind. Empty data yields nil.
func decodeData(kind canvas.NodeKind, raw json.RawMessage) (canvas.Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return canvas.DecodePayload(kind, raw)
}
