package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/canvas"
	"github.com/meikuraledutech/canvas/chain"
	"github.com/meikuraledutech/canvas/group"
	"github.com/meikuraledutech/canvas/internal/ctxlog"
	"github.com/meikuraledutech/canvas/search"
	"github.com/meikuraledutech/canvas/shortcut"
)

// ── Nodes ─────────────────────────────────────────────────────────────

func (s *server) addNode(c fiber.Ctx) error {
	var body struct {
		Type     canvas.NodeKind  `json:"type"`
		Position *canvas.Position `json:"position"`
		Data     json.RawMessage  `json:"data"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	data, err := decodeData(body.Type, body.Data)
	if err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
		pos := g.NextPosition()
		if body.Position != nil {
			pos = *body.Position
		}
		id, err := g.AddNode(body.Type, pos, data)
		if err != nil {
			return 0, nil, err
		}
		return 201, fiber.Map{"id": id, "position": pos}, nil
	})
}

func (s *server) updateNode(c fiber.Ctx) error {
	var body struct {
		Position *canvas.Position `json:"position"`
		Data     json.RawMessage  `json:"data"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	nodeID := c.Params("node")
	return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
		n, ok := g.Node(nodeID)
		if !ok {
			return 0, nil, canvas.ErrNodeNotFound
		}
		if len(body.Data) > 0 {
			data, err := canvas.DecodePayload(n.Kind, body.Data)
			if err != nil {
				return 0, nil, err
			}
			if err := g.UpdateNodeData(nodeID, data); err != nil {
				return 0, nil, err
			}
		}
		if body.Position != nil {
			if err := g.MoveNode(nodeID, *body.Position); err != nil {
				return 0, nil, err
			}
		}
		return 204, nil, nil
	})
}

// ── Connections ───────────────────────────────────────────────────────

func (s *server) addConnection(c fiber.Ctx) error {
	var body canvas.Connection
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
		id, err := g.AddConnection(body.Source, body.SourceHandle, body.Target, body.TargetHandle)
		if err != nil {
			s.metrics.ConnectionRejected(rejectReason(err))
			return 0, nil, err
		}
		return 201, fiber.Map{"id": id}, nil
	})
}

// ── Search & bounds ───────────────────────────────────────────────────

func (s *server) searchCanvas(c fiber.Ctx) error {
	f := search.Filters{
		Query:    c.Query("q"),
		Category: canvas.Category(c.Query("category")),
		Kind:     canvas.NodeKind(c.Query("kind")),
	}
	if v := c.Query("connected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "connected must be true or false"})
		}
		f.HasConnections = &b
	}

	state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if state == nil {
		return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
	}
	res := search.Apply(*state, f)
	return c.JSON(fiber.Map{"nodes": res.Nodes, "highlighted": res.Highlighted})
}

func (s *server) addTemplate(c fiber.Ctx) error {
	var body struct {
		Name     string           `json:"name"`
		Position *canvas.Position `json:"position"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	return s.mutate(c, func(g *canvas.Graph) (int, any, error) {
		pos := g.NextPosition()
		if body.Position != nil {
			pos = *body.Position
		}
		ids, err := g.AddTemplate(body.Name, pos)
		if err != nil {
			return 0, nil, err
		}
		return 201, fiber.Map{"ids": ids}, nil
	})
}

func (s *server) bounds(c fiber.Ctx) error {
	var body struct {
		Nodes []string `json:"nodes"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if state == nil {
		return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
	}
	return c.JSON(group.BoundsFromMembers(state.Nodes, body.Nodes))
}

// ── Groups ────────────────────────────────────────────────────────────

func (s *server) createGroup(c fiber.Ctx) error {
	var body struct {
		Name  string   `json:"name"`
		Nodes []string `json:"nodes"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if state == nil {
		return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.groupsOf(c.Params("id"))
	b := group.BoundsFromMembers(state.Nodes, body.Nodes)
	g, err := m.Create(body.Name, body.Nodes, b.Position)
	if err != nil {
		return s.fail(c, err)
	}
	if g, err = m.Fit(g.ID, state.Nodes); err != nil {
		return s.fail(c, err)
	}
	return c.Status(201).JSON(g)
}

// groupMembers adds (add true) or removes the nodes listed in the body.
func (s *server) groupMembers(add bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body struct {
			Nodes []string `json:"nodes"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		m := s.groupsOf(c.Params("id"))
		if add {
			g, err := m.AddNodes(c.Params("group"), body.Nodes...)
			if err != nil {
				return s.fail(c, err)
			}
			return c.JSON(g)
		}
		deleted, err := m.RemoveNodes(c.Params("group"), body.Nodes...)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"deleted": deleted})
	}
}

func (s *server) updateGroup(c fiber.Ctx) error {
	var body struct {
		Name     *string          `json:"name"`
		Position *canvas.Position `json:"position"`
		Fit      bool             `json:"fit"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	var nodes []canvas.Node
	if body.Fit {
		state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
		if err != nil {
			return s.fail(c, err)
		}
		if state == nil {
			return c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
		}
		nodes = state.Nodes
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.groupsOf(c.Params("id"))
	id := c.Params("group")
	if body.Name != nil {
		if err := m.Rename(id, *body.Name); err != nil {
			return s.fail(c, err)
		}
	}
	if body.Position != nil {
		if err := m.Move(id, *body.Position); err != nil {
			return s.fail(c, err)
		}
	}
	if body.Fit {
		if _, err := m.Fit(id, nodes); err != nil {
			return s.fail(c, err)
		}
	}
	g, ok := m.Get(id)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "group not found"})
	}
	return c.JSON(g)
}

// ── Shortcuts ─────────────────────────────────────────────────────────

// matchShortcut resolves ?chord= against the table. fired reports whether
// the action would run given ?text_field=.
func (s *server) matchShortcut(c fiber.Ctx) error {
	ev, err := shortcut.ParseChord(c.Query("chord"))
	if err != nil {
		return s.fail(c, err)
	}
	ev.InTextField = c.Query("text_field") == "true"

	d := shortcut.NewDispatcher(s.shortcuts)
	for _, b := range s.shortcuts {
		d.On(b.Action, func() {})
	}
	action, fired := d.Handle(ev)
	if action == "" {
		return c.Status(404).JSON(fiber.Map{"error": "no binding for chord"})
	}
	return c.JSON(fiber.Map{"action": action, "fired": fired})
}

// ── Recovery ──────────────────────────────────────────────────────────

// syncRecovery refreshes a chain and feeds the view's monitor. ?view= names the
// client view; it defaults to the chain id.
func (s *server) syncRecovery(c fiber.Ctx) error {
	chainID := c.Params("chain")
	view := c.Query("view", chainID)

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors.Get(view)
	if !ok {
		m = chain.NewMonitor()
		s.monitors.Add(view, m)
	}

	ev, arts, err := chain.Sync(c.Context(), s.store, m, chainID)
	if err != nil {
		return s.fail(c, err)
	}
	if ev != chain.EventNone {
		s.metrics.RecoveryEvent(ev.String())
		ctxlog.FromContext(c.Context()).Info("recovery event", "chain", chainID, "view", view, "event", ev.String())
	}

	resp := fiber.Map{"event": ev.String(), "state": m.State().String()}
	if id, ok := m.Tracking(); ok {
		resp["tracking"] = id
	}
	if ev == chain.EventRecovered {
		if a, ok := chain.Latest(arts); ok {
			n, _ := chain.VersionOf(a, arts)
			resp["latest"] = chain.Version{Number: n, Artifact: a}
		}
	}
	return c.JSON(resp)
}

// ── Workflow ──────────────────────────────────────────────────────────

// loadGraph reads a canvas for a read-only handler. A nil graph with a nil
// error means the response has already been written.
func (s *server) loadGraph(c fiber.Ctx) (*canvas.Graph, error) {
	state, err := s.store.GetCanvas(c.Context(), c.Params("id"))
	if err != nil {
		return nil, s.fail(c, err)
	}
	if state == nil {
		return nil, c.Status(404).JSON(fiber.Map{"error": "canvas not found"})
	}
	g, err := canvas.Load(*state)
	if err != nil {
		return nil, s.fail(c, err)
	}
	return g, nil
}

func (s *server) executionPlan(c fiber.Ctx) error {
	g, err := s.loadGraph(c)
	if g == nil {
		return err
	}
	order := g.ExecutionOrder()
	deps := make(map[string][]string, len(order))
	missing := map[string][]canvas.PortSpec{}
	for _, id := range order {
		deps[id] = g.Dependencies(id)
		ports, err := g.MissingInputs(id)
		if err != nil {
			return s.fail(c, err)
		}
		if len(ports) > 0 {
			missing[id] = ports
		}
	}
	return c.JSON(fiber.Map{
		"order":        order,
		"dependencies": deps,
		"missing":      missing,
		"ready":        g.ReadyNodes(canvas.Progress{}),
	})
}

func (s *server) readyNodes(c fiber.Ctx) error {
	var p canvas.Progress
	if err := c.Bind().JSON(&p); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	g, err := s.loadGraph(c)
	if g == nil {
		return err
	}
	return c.JSON(fiber.Map{"ready": g.ReadyNodes(p)})
}

func (s *server) validTargets(c fiber.Ctx) error {
	kind := canvas.NodeKind(c.Query("kind"))
	if !kind.Valid() {
		return s.fail(c, fmt.Errorf("%w: %q", canvas.ErrUnknownKind, kind))
	}
	port := c.Query("port")
	if _, ok := canvas.Lookup(kind).Output(port); !ok {
		return s.fail(c, fmt.Errorf("%w: %s has no output %q", canvas.ErrInvalidPort, kind, port))
	}
	g, err := s.loadGraph(c)
	if g == nil {
		return err
	}
	return c.JSON(g.ValidTargets(kind, port))
}
