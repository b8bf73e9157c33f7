// Package phrase finds documents in which a sequence of terms occurs
// contiguously and in order.
package phrase

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/summary-search/internal/indexer/index"
)

// Lookup returns a term's postings. ok is false for unindexed terms.
type Lookup func(term string) (postings index.PostingList, ok bool)

// Match returns the documents containing terms as an exact phrase. Each
// term's positions are shifted back by its offset in the phrase; a document
// matches when the shifted position sets of all terms share an anchor. Any
// unindexed term yields an empty set.
func Match(terms []string, lookup Lookup) *roaring.Bitmap {
	if len(terms) == 0 {
		return roaring.New()
	}
	lists := make([]index.PostingList, len(terms))
	docSets := make([]*roaring.Bitmap, len(terms))
	for i, term := range terms {
		pl, ok := lookup(term)
		if !ok || len(pl) == 0 {
			return roaring.New()
		}
		lists[i] = pl
		docSets[i] = docBitmap(pl)
	}

	shared := roaring.FastAnd(docSets...)
	result := roaring.New()
	if shared.IsEmpty() {
		return result
	}

	// anchors[i][doc] holds term i's positions minus i, restricted to shared.
	anchors := make([]map[uint32]*roaring.Bitmap, len(terms))
	for i, pl := range lists {
		anchors[i] = make(map[uint32]*roaring.Bitmap, shared.GetCardinality())
		for _, p := range pl {
			doc := uint32(p.DocID)
			if !shared.Contains(doc) {
				continue
			}
			shifted := roaring.New()
			for _, pos := range p.Positions {
				if pos >= i {
					shifted.Add(uint32(pos - i))
				}
			}
			anchors[i][doc] = shifted
		}
	}

	it := shared.Iterator()
	for it.HasNext() {
		doc := it.Next()
		sets := make([]*roaring.Bitmap, len(terms))
		for i := range terms {
			sets[i] = anchors[i][doc]
		}
		if !roaring.FastAnd(sets...).IsEmpty() {
			result.Add(doc)
		}
	}
	return result
}

func docBitmap(pl index.PostingList) *roaring.Bitmap {
	bm := roaring.New()
	for _, p := range pl {
		bm.Add(uint32(p.DocID))
	}
	return bm
}
