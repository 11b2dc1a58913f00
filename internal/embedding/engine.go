// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package embedding provides an ONNX-based embedding engine for semantic
// retrieval over the mathematical corpus. It uses the MiniLM model to
// generate 384-dimensional embeddings for questions and documents.
package embedding

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/solvernet/mathrouter/internal/config"
)

const (
	// DefaultModel is the default embedding model name.
	DefaultModel = "all-MiniLM-L6-v2"

	// Dimension is the output dimension of the MiniLM model.
	Dimension = 384

	// MaxSequenceLength is the maximum input sequence length.
	MaxSequenceLength = 256
)

// Engine runs embedding inference through the ONNX runtime. A disabled or
// failed engine reports Enabled() == false and the knowledge store serves
// keyword search instead, so the engine is never a hard dependency.
type Engine struct {
	configured bool
	modelPath  string
	vocabPath  string
	libPath    string

	mu        sync.RWMutex
	session   *ort.DynamicAdvancedSession
	tokenizer *Tokenizer
	dimension int
	ready     bool
}

// NewEngine creates an engine from configuration. The engine stays inert
// until Initialize is called.
func NewEngine(cfg *config.EmbeddingConfig) *Engine {
	return &Engine{
		configured: cfg.Enabled,
		modelPath:  cfg.ModelPath,
		vocabPath:  cfg.VocabPath,
		libPath:    cfg.SharedLibraryPath,
		dimension:  Dimension,
	}
}

// Initialize loads the ONNX model and prepares the engine for inference.
// Paths left empty in the configuration are resolved through the default
// model locator. Initialize is a no-op when embedding is disabled.
//
// Returns:
//   - error: Any error encountered while loading the model
func (e *Engine) Initialize() error {
	if !e.configured {
		log.Debugf("Embedding engine disabled by configuration")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	loc := NewLocator()

	modelPath := e.modelPath
	if modelPath == "" {
		modelPath = loc.ModelPath(DefaultModel)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("embedding model not found: %s", modelPath)
	}

	libPath := e.libPath
	if libPath == "" {
		libPath = loc.SharedLibraryPath()
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to load ONNX model: %w", err)
	}

	vocabPath := e.vocabPath
	if vocabPath == "" {
		vocabPath = loc.VocabPath(DefaultModel)
	}
	tokenizer, err := NewTokenizer(vocabPath)
	if err != nil {
		session.Destroy()
		return fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	e.session = session
	e.tokenizer = tokenizer
	e.ready = true
	log.Infof("Embedding engine initialized with model: %s", filepath.Base(modelPath))

	return nil
}

// Enabled reports whether the engine is ready for inference.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Dimension returns the embedding output dimension.
func (e *Engine) Dimension() int {
	return e.dimension
}

// Embed computes one embedding vector per input text. Each text is
// tokenized, passed through the model, mean-pooled over its attention mask,
// and L2-normalized.
//
// Parameters:
//   - texts: The input texts to embed
//
// Returns:
//   - [][]float32: One 384-dimensional vector per text
//   - error: Any error encountered during tokenization or inference
func (e *Engine) Embed(texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready {
		return nil, fmt.Errorf("embedding engine not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		tokens, err := e.tokenizer.Tokenize(text, MaxSequenceLength)
		if err != nil {
			return nil, fmt.Errorf("tokenization failed for text %d: %w", i, err)
		}
		vector, err := e.runInference(tokens)
		if err != nil {
			return nil, fmt.Errorf("inference failed for text %d: %w", i, err)
		}
		embeddings[i] = vector
	}
	return embeddings, nil
}

// runInference executes the ONNX model with the given tokens.
// Must be called with the read lock held.
func (e *Engine) runInference(tokens *TokenizedInput) ([]float32, error) {
	seqLen := int64(len(tokens.InputIDs))

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), tokens.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), tokens.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer attentionMaskTensor.Destroy()

	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), tokens.TokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer tokenTypeIDsTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(e.dimension)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = e.session.Run(
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}

	vector := e.meanPooling(outputTensor.GetData(), tokens.AttentionMask, int(seqLen))
	return e.normalize(vector), nil
}

// meanPooling averages the token embeddings weighted by the attention mask.
func (e *Engine) meanPooling(output []float32, attentionMask []int64, seqLen int) []float32 {
	vector := make([]float32, e.dimension)
	var totalWeight float32

	for i := 0; i < seqLen; i++ {
		if attentionMask[i] != 1 {
			continue
		}
		for j := 0; j < e.dimension; j++ {
			vector[j] += output[i*e.dimension+j]
		}
		totalWeight++
	}

	if totalWeight > 0 {
		for j := 0; j < e.dimension; j++ {
			vector[j] /= totalWeight
		}
	}
	return vector
}

// normalize applies L2 normalization to the embedding vector.
func (e *Engine) normalize(vector []float32) []float32 {
	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))

	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector
}

// Close releases the ONNX session. Safe to call on a never-initialized
// engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.ready = false
	log.Info("Embedding engine shut down")
	return nil
}
