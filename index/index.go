package index

import "math"

// Document is a scoring candidate.
type Document struct {
	ID   string
	Text string
}

// Result is the score of one document.
type Result struct {
	ID    string
	Score float64
}

// Index holds the term statistics of a corpus.
type Index struct {
	ids   []string
	terms []map[string]int
	df    map[string]int
	byID  map[string]int
}

// Build tokenizes every document of corpus.
func Build(corpus []Document) *Index {
	ix := &Index{
		ids:   make([]string, len(corpus)),
		terms: make([]map[string]int, len(corpus)),
		df:    make(map[string]int),
		byID:  make(map[string]int, len(corpus)),
	}
	for i, doc := range corpus {
		ix.ids[i] = doc.ID
		if _, dup := ix.byID[doc.ID]; !dup {
			ix.byID[doc.ID] = i
		}
		tf := make(map[string]int)
		for _, term := range Tokenize(doc.Text) {
			tf[term]++
		}
		for term := range tf {
			ix.df[term]++
		}
		ix.terms[i] = tf
	}
	return ix
}

// Len returns the number of documents in the index.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// DocumentFrequency returns how many documents contain term.
func (ix *Index) DocumentFrequency(term string) int {
	return ix.df[term]
}

// IDF returns ln(N / df) for term, or 0 when no document contains it.
func (ix *Index) IDF(term string) float64 {
	df := ix.df[term]
	if df == 0 {
		return 0
	}
	return math.Log(float64(len(ix.ids)) / float64(df))
}

// Weight returns tf * idf of term in the document with the given id.
func (ix *Index) Weight(term, id string) float64 {
	i, ok := ix.byID[id]
	if !ok {
		return 0
	}
	return float64(ix.terms[i][term]) * ix.IDF(term)
}

// Score returns the documents with a positive score for query, in corpus order.
func (ix *Index) Score(query string) []Result {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 || len(ix.ids) == 0 {
		return nil
	}

	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		if _, ok := idf[term]; !ok {
			idf[term] = ix.IDF(term)
		}
	}

	var results []Result
	for i, tf := range ix.terms {
		score := 0.0
		for _, term := range queryTerms {
			score += float64(tf[term]) * idf[term]
		}
		if score > 0 {
			results = append(results, Result{ID: ix.ids[i], Score: score})
		}
	}
	return results
}

// Score builds an index over corpus and scores query against it.
func Score(query string, corpus []Document) []Result {
	return Build(corpus).Score(query)
}
