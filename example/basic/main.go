package main

import (
	"context"
	"fmt"
	"log"

	psyrag "github.com/corpuslab/psyrag"
	"github.com/corpuslab/psyrag/helper"
	"github.com/corpuslab/psyrag/model"
)

const sampleContent = `# Cognitive Behavioral Therapy

Cognitive behavioral therapy (CBT) is a structured, time-limited psychotherapy
that targets the interplay between thoughts, emotions and behavior.

## Core Techniques

Cognitive restructuring teaches clients to identify automatic thoughts and
test them against evidence. Behavioral activation schedules rewarding
activities to counter withdrawal and low mood.

## Evidence Base

Meta-analyses consistently find medium to large effects of CBT for depressive
and anxiety disorders, with effects maintained at follow-up.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "psyrag",
		Password: "psyrag",
		Name:     "psyrag_test",
		SSLMode:  "disable",
	}

	p, err := psyrag.NewPsyRAG(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create psyrag: %v", err)
	}
	defer p.Close()

	// Wire the default ONNX models (embedder, reranker, entity extractor)
	if err := p.UseDefaultModels(); err != nil {
		log.Fatalf("Failed to set up models: %v", err)
	}

	// Ingest a markdown document into line-aware section chunks
	doc := &model.Document{
		Title:   "Cognitive Behavioral Therapy Primer",
		Source:  "basic_example",
		Content: sampleContent,
		Metadata: model.Metadata{
			"author": "Example Author",
			"topic":  "psychotherapy",
			"year":   2020,
		},
	}

	fmt.Println("Ingesting document...")
	numChunks, err := p.ProcessAndInsertDocument(doc)
	if err != nil {
		log.Fatalf("Failed to process and insert document: %v", err)
	}
	fmt.Printf("Document inserted with ID: %s (%s, %d)\n", doc.RID, doc.Metadata.StringValue("topic"), doc.Metadata.IntValue("year"))
	fmt.Printf("Inserted %d chunks\n", numChunks)

	// Create a query with expansion variants and a hypothetical answer
	query, err := p.CreateQuery(
		"How effective is CBT for depression?",
		[]string{
			"efficacy of cognitive behavioral therapy for depressive disorders",
			"CBT treatment outcomes depression meta-analysis",
		},
		"CBT shows medium to large effects for depression across meta-analyses.",
		model.IntentStudyDetail,
	)
	if err != nil {
		log.Fatalf("Failed to create query: %v", err)
	}

	// Run all stages: embed, retrieve, consolidate
	fmt.Printf("\nRunning query %s...\n", query.RID)
	query, err = p.RunQuery(context.Background(), query.RID)
	if err != nil {
		log.Fatalf("Failed to run query: %v", err)
	}

	fmt.Printf("Query status: %s\n", query.Status)
	fmt.Printf("Retrieved %d chunks, consolidated into %d groups\n\n", len(query.RetrievedContext), len(query.CleanContext))

	for i, group := range query.CleanContext {
		fmt.Printf("--- Group %d (coverage %.2f, top score %.4f) ---\n", i+1, group.Coverage, group.TopScore)
		fmt.Println(group.MergedContent)
		fmt.Println()
	}
}
