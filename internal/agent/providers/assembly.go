package providers

import (
	"encoding/json"
	"strings"

	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// blockAssembler rebuilds content blocks from per-index stream deltas.
//
// Tool input arrives as partial JSON fragments. Each fragment is appended to
// a rolling buffer and the buffer is re-parsed; a parse failure just means
// the JSON is still incomplete, and the last successful parse wins.
type blockAssembler struct {
	order  []int64
	blocks map[int64]*blockState
}

type blockState struct {
	typ      models.BlockType
	id       string
	name     string
	text     strings.Builder
	inputBuf strings.Builder
	input    json.RawMessage
}

func newBlockAssembler() *blockAssembler {
	return &blockAssembler{blocks: make(map[int64]*blockState)}
}

func (a *blockAssembler) start(index int64, st *blockState) {
	if _, ok := a.blocks[index]; ok {
		return
	}
	a.blocks[index] = st
	a.order = append(a.order, index)
}

func (a *blockAssembler) startText(index int64) {
	a.start(index, &blockState{typ: models.BlockText})
}

func (a *blockAssembler) startToolUse(index int64, id, name string) {
	a.start(index, &blockState{typ: models.BlockToolUse, id: id, name: name})
}

func (a *blockAssembler) appendText(index int64, delta string) {
	if st, ok := a.blocks[index]; ok {
		st.text.WriteString(delta)
	}
}

func (a *blockAssembler) appendInput(index int64, fragment string) {
	st, ok := a.blocks[index]
	if !ok {
		return
	}
	st.inputBuf.WriteString(fragment)
	buf := st.inputBuf.String()
	if json.Valid([]byte(buf)) {
		st.input = json.RawMessage(buf)
	}
}

// seal produces the final response in block-index order. A tool_use block
// whose input never parsed falls back to an empty object.
func (a *blockAssembler) seal() *Response {
	resp := &Response{StopReason: models.StopEndTurn}
	for _, index := range a.order {
		st := a.blocks[index]
		switch st.typ {
		case models.BlockText:
			resp.Blocks = append(resp.Blocks, models.TextBlock(st.text.String()))
		case models.BlockToolUse:
			input := st.input
			if input == nil {
				input = json.RawMessage("{}")
			}
			resp.Blocks = append(resp.Blocks, models.ToolUseBlock(st.id, st.name, input))
			resp.StopReason = models.StopToolUse
		}
	}
	return resp
}
