// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// TokenizedInput is the tokenized output ready for model inference.
type TokenizedInput struct {
	// InputIDs are the token IDs
	InputIDs []int64

	// AttentionMask indicates which tokens are real (1) vs padding (0)
	AttentionMask []int64

	// TokenTypeIDs are segment IDs (0 for first segment)
	TokenTypeIDs []int64
}

// Tokenizer implements a basic WordPiece tokenizer for BERT-style models.
// Without a vocabulary file it falls back to a built-in mathematical
// vocabulary, which keeps the engine usable for smoke testing.
type Tokenizer struct {
	vocab     map[string]int64
	idToToken map[int64]string

	clsTokenID int64
	sepTokenID int64
	padTokenID int64
	unkTokenID int64
}

// NewTokenizer creates a tokenizer from a vocabulary file with one token per
// line. A missing file falls back to the built-in vocabulary; a read error
// is returned.
func NewTokenizer(vocabPath string) (*Tokenizer, error) {
	t := &Tokenizer{
		vocab:     make(map[string]int64),
		idToToken: make(map[int64]string),
	}

	if vocabPath == "" {
		t.initBuiltinVocab()
		return t, nil
	}

	file, err := os.Open(vocabPath)
	if err != nil {
		t.initBuiltinVocab()
		return t, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := scanner.Text()
		t.vocab[token] = id
		t.idToToken[id] = token
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading vocabulary: %w", err)
	}

	t.setSpecialTokenIDs()
	return t, nil
}

// initBuiltinVocab installs a minimal vocabulary of special tokens, common
// English words, and the mathematical terms the corpus actually uses.
func (t *Tokenizer) initBuiltinVocab() {
	builtin := []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"the", "a", "an", "is", "are", "was", "were",
		"to", "of", "in", "for", "on", "with", "at",
		"by", "from", "as", "or", "and", "but", "not",
		"this", "that", "it", "be", "have", "has", "had",
		"do", "does", "did", "will", "would", "could", "should",
		"can", "what", "which", "where", "when", "why", "how",
		"all", "each", "every", "only", "same", "so", "than", "very",
		"solve", "calculate", "find", "compute", "explain", "prove",
		"equation", "formula", "function", "number", "value", "result",
		"derivative", "integral", "limit", "series", "sum", "product",
		"quadratic", "linear", "polynomial", "factor", "root", "roots",
		"triangle", "circle", "angle", "area", "radius", "slope",
		"theorem", "proof", "identity", "matrix", "vector", "graph",
		"prime", "fraction", "ratio", "sine", "cosine", "tangent",
		"##s", "##ed", "##ing", "##er", "##ly", "##tion", "##ment",
	}

	for i, token := range builtin {
		t.vocab[token] = int64(i)
		t.idToToken[int64(i)] = token
	}
	t.setSpecialTokenIDs()
}

func (t *Tokenizer) setSpecialTokenIDs() {
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsTokenID = id
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepTokenID = id
	}
	if id, ok := t.vocab["[PAD]"]; ok {
		t.padTokenID = id
	}
	if id, ok := t.vocab["[UNK]"]; ok {
		t.unkTokenID = id
	}
}

// Tokenize converts text into token IDs framed by [CLS] and [SEP]. The
// output never exceeds maxLength and always ends with [SEP].
func (t *Tokenizer) Tokenize(text string, maxLength int) (*TokenizedInput, error) {
	text = t.normalizeText(strings.ToLower(text))
	words := strings.Fields(text)

	tokens := []int64{t.clsTokenID}
	for _, word := range words {
		tokens = append(tokens, t.tokenizeWord(word)...)
		if len(tokens) >= maxLength-1 {
			break
		}
	}
	tokens = append(tokens, t.sepTokenID)

	if len(tokens) > maxLength {
		tokens = tokens[:maxLength-1]
		tokens = append(tokens, t.sepTokenID)
	}

	seqLen := len(tokens)
	attentionMask := make([]int64, seqLen)
	tokenTypeIDs := make([]int64, seqLen)
	for i := 0; i < seqLen; i++ {
		attentionMask[i] = 1
	}

	return &TokenizedInput{
		InputIDs:      tokens,
		AttentionMask: attentionMask,
		TokenTypeIDs:  tokenTypeIDs,
	}, nil
}

// normalizeText collapses whitespace and spaces out punctuation so symbols
// like "=" and "?" become their own tokens.
func (t *Tokenizer) normalizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	var result strings.Builder
	for _, r := range text {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			result.WriteRune(' ')
			result.WriteRune(r)
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

// tokenizeWord applies greedy longest-match WordPiece to a single word.
func (t *Tokenizer) tokenizeWord(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	var tokens []int64
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			substr := word[start:end]
			if start > 0 {
				substr = "##" + substr
			}
			if id, ok := t.vocab[substr]; ok {
				tokens = append(tokens, id)
				found = true
				break
			}
			end--
		}
		if !found {
			tokens = append(tokens, t.unkTokenID)
			start++
			continue
		}
		start = end
	}

	if len(tokens) == 0 {
		return []int64{t.unkTokenID}
	}
	return tokens
}

// VocabSize returns the number of tokens in the vocabulary.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}
