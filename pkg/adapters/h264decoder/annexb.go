package h264decoder

import (
	"container/heap"
)

var startCode = []byte{0, 0, 0, 1}

// avccToAnnexB converts 4-byte length-prefixed NAL units to Annex B.
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0

	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if offset+naluLen > len(data) {
			break
		}

		result = append(result, startCode...)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}

	return result
}

func parameterSetsAnnexB(sets [][]byte) []byte {
	var result []byte
	for _, ps := range sets {
		result = append(result, startCode...)
		result = append(result, ps...)
	}
	return result
}

// ptsHeap hands out the timestamps of sent packets in ascending order.
// Decoded frames leave the decoder in presentation order, so the smallest
// pending timestamp belongs to the next frame.
type ptsHeap []int64

func (h ptsHeap) Len() int           { return len(h) }
func (h ptsHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h ptsHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *ptsHeap) Push(x any) { *h = append(*h, x.(int64)) }

func (h *ptsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *ptsHeap) push(pts int64) {
	heap.Push(h, pts)
}

func (h *ptsHeap) pop() (int64, bool) {
	if h.Len() == 0 {
		return 0, false
	}
	return heap.Pop(h).(int64), true
}
