// Package docid implements the stable string identifiers that key the
// vector index: "a_<article_id>" for whole-article documents and
// "c_<article_id>_<chunk_index>" for chunk documents.
//
// Earlier revisions used integer ids assigned by scanning the vector index
// for the next free slot during incremental updates; after a delete, two
// concurrent writers could compute the same "next free" id and collide.
// Deterministic strings derived from the article's primary key remove the
// race entirely: the id space is a pure function of (article_id, chunk_index).
package docid

import (
	"errors"
	"strconv"
	"strings"
)

const (
	articlePrefix = "a_"
	chunkPrefix   = "c_"
)

// ErrMalformedID is returned by Parse when a string does not match either
// the whole-article or chunk id shape.
var ErrMalformedID = errors.New("docid: malformed id")

// Kind distinguishes the two variants of a parsed id.
type Kind int

const (
	// KindArticle identifies a whole-article vector document.
	KindArticle Kind = iota
	// KindChunk identifies a chunk vector document.
	KindChunk
)

// Parsed is the tagged result of parsing a vector-document id.
type Parsed struct {
	Kind       Kind
	ArticleID  int64
	ChunkIndex int // valid only when Kind == KindChunk
}

// MakeArticleID returns the stable id for a whole-article document.
func MakeArticleID(articleID int64) string {
	return articlePrefix + strconv.FormatInt(articleID, 10)
}

// MakeChunkID returns the stable id for a chunk document.
func MakeChunkID(articleID int64, chunkIndex int) string {
	return chunkPrefix + strconv.FormatInt(articleID, 10) + "_" + strconv.Itoa(chunkIndex)
}

// Parse is total: it either returns a valid Parsed variant or ErrMalformedID.
// It never panics on arbitrary input.
func Parse(id string) (Parsed, error) {
	switch {
	case strings.HasPrefix(id, articlePrefix):
		rest := id[len(articlePrefix):]
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || rest == "" {
			return Parsed{}, ErrMalformedID
		}
		return Parsed{Kind: KindArticle, ArticleID: n}, nil
	case strings.HasPrefix(id, chunkPrefix):
		rest := id[len(chunkPrefix):]
		sep := strings.LastIndexByte(rest, '_')
		if sep <= 0 || sep == len(rest)-1 {
			return Parsed{}, ErrMalformedID
		}
		articleID, err := strconv.ParseInt(rest[:sep], 10, 64)
		if err != nil {
			return Parsed{}, ErrMalformedID
		}
		chunkIndex, err := strconv.Atoi(rest[sep+1:])
		if err != nil || chunkIndex < 0 {
			return Parsed{}, ErrMalformedID
		}
		return Parsed{Kind: KindChunk, ArticleID: articleID, ChunkIndex: chunkIndex}, nil
	default:
		return Parsed{}, ErrMalformedID
	}
}

// ExtractArticleID returns the integer article id encoded in id, for either
// variant. It is a thin convenience wrapper over Parse used throughout
// dedup/filter code that only cares about the parent article.
func ExtractArticleID(id string) (int64, error) {
	p, err := Parse(id)
	if err != nil {
		return 0, err
	}
	return p.ArticleID, nil
}

// IsChunk reports whether id names a chunk document.
func IsChunk(id string) bool {
	p, err := Parse(id)
	return err == nil && p.Kind == KindChunk
}
