package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/canvas"
	"github.com/meikuraledutech/canvas/chain"
	"github.com/meikuraledutech/canvas/group"
	"github.com/meikuraledutech/canvas/postgres"
	"github.com/meikuraledutech/canvas/search"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	pg := postgres.New(pool)
	var store canvas.Store = pg
	var chains chain.Store = pg

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Build a canvas in memory ──────────────────────────────────────
	g := canvas.NewGraph()
	text := mustAdd(g, canvas.KindText, canvas.TextData{Prompt: "timber cabin by a lake"})
	style := mustAdd(g, canvas.KindStyle, nil)
	img := mustAdd(g, canvas.KindImage, nil)
	variants := mustAdd(g, canvas.KindVariantSet, nil)

	mustConnect(g, text, "text", img, "prompt")
	mustConnect(g, style, "style", img, "style")
	mustConnect(g, img, "image", variants, "sourceImage")

	// ── Rejected edits leave the graph untouched ──────────────────────
	if _, err := g.AddConnection(variants, "variants", img, "baseImage"); err != nil {
		fmt.Printf("\nrejected: %v\n", err)
	}
	if _, err := g.AddConnection(img, "image", variants, "sourceImage"); errors.Is(err, canvas.ErrDuplicateConnection) {
		fmt.Println("rejected: duplicate connection")
	}

	// ── Save and read back ────────────────────────────────────────────
	if err := store.SaveCanvas(ctx, "cabin", g.Snapshot()); err != nil {
		log.Fatalf("save canvas: %v", err)
	}
	saved, err := store.GetCanvas(ctx, "cabin")
	if err != nil {
		log.Fatalf("get canvas: %v", err)
	}
	fmt.Println("\ncanvas retrieved:")
	printJSON(saved)

	// ── Search and group ──────────────────────────────────────────────
	res := search.Apply(*saved, search.Filters{Query: "cabin"})
	fmt.Printf("\nsearch \"cabin\": %d node(s), highlighted %v\n", len(res.Nodes), res.Highlighted)

	groups := group.NewManager()
	inputs, err := groups.Create("Inputs", []string{text, style}, canvas.Position{})
	if err != nil {
		log.Fatalf("create group: %v", err)
	}
	inputs, _ = groups.Fit(inputs.ID, saved.Nodes)
	fmt.Println("\ngroup fitted to its members:")
	printJSON(inputs)

	// ── Render chain ──────────────────────────────────────────────────
	chainID := "cabin-" + img
	for _, a := range []*chain.Artifact{
		{ChainID: chainID, Prompt: "first", Status: chain.StatusCompleted, OutputRef: "renders/1.png"},
		{ChainID: chainID, Prompt: "second", Status: chain.StatusFailed, ErrorMessage: "timeout"},
		{ChainID: chainID, Prompt: "third"},
	} {
		if err := chains.CreateArtifact(ctx, a); err != nil {
			log.Fatalf("create artifact: %v", err)
		}
	}

	// a reloaded client finds the third render still in flight
	monitor := chain.NewMonitor()
	ev, arts, err := chain.Sync(ctx, chains, monitor, chainID)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	tracking, _ := monitor.Tracking()
	fmt.Printf("\nrecovery: %s, tracking %s\n", ev, tracking)

	if err := chains.UpdateArtifact(ctx, tracking, chain.StatusCompleted, "renders/3.png", ""); err != nil {
		log.Fatalf("update artifact: %v", err)
	}
	ev, arts, err = chain.Sync(ctx, chains, monitor, chainID)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	fmt.Printf("recovery: %s\n", ev)

	fmt.Println("\nversions:")
	printJSON(chain.Versions(arts))

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteCanvas(ctx, "cabin"); err != nil {
		log.Fatalf("delete canvas: %v", err)
	}
	fmt.Println("\ncanvas deleted")

	if err := store.DropSchema(ctx); err != nil {
		log.Fatalf("drop schema: %v", err)
	}
	fmt.Println("schema dropped")
}

func mustAdd(g *canvas.Graph, kind canvas.NodeKind, data canvas.Payload) string {
	id, err := g.AddNode(kind, g.NextPosition(), data)
	if err != nil {
		log.Fatalf("add %s node: %v", kind, err)
	}
	return id
}

func mustConnect(g *canvas.Graph, source, sourcePort, target, targetPort string) {
	if _, err := g.AddConnection(source, sourcePort, target, targetPort); err != nil {
		log.Fatalf("connect %s.%s -> %s.%s: %v", source, sourcePort, target, targetPort, err)
	}
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
