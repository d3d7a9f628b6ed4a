package live

import (
	"net/http"
	"time"

	"github.com/isafetyrobo/safety-agent/api/server/config"
	"github.com/isafetyrobo/safety-agent/api/server/shared"
	"github.com/isafetyrobo/safety-agent/api/server/types"
)

// Board geometry in pixels.
const (
	RowHeight    = 48
	VisibleRows  = 10
	viewportSize = RowHeight * VisibleRows
)

// GetBoardHandler advances the auto-scrolling incident board and returns the
// rows currently in view, for wall displays that poll it.
type GetBoardHandler struct {
	resultWriter shared.ResultWriter
	config       *config.Config
	now          func() time.Time
}

func NewGetBoardHandler(config *config.Config) *GetBoardHandler {
	return &GetBoardHandler{
		resultWriter: shared.NewDefaultResultWriter(config.Logger),
		config:       config,
		now:          time.Now,
	}
}

func (h *GetBoardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	count := h.config.Feed.Len()
	board := h.config.LiveBoard

	board.Resize(float64(count*RowHeight), viewportSize)

	offset := board.Tick(now)
	first := int(offset) / RowHeight

	if first > count {
		first = count
	}

	h.resultWriter.WriteResult(w, r, &types.LiveBoardResponse{
		State:    board.State(now),
		Offset:   offset,
		FirstRow: first,
		Rows:     h.config.Feed.Window(first, VisibleRows+1),
	})
}

// InteractHandler records a user interaction with the board, which pauses
// auto scrolling for the quiet period. The body may also pin or release the
// board with {"live": false|true}.
type InteractHandler struct {
	decoderValidator shared.RequestDecoderValidator
	config           *config.Config
	now              func() time.Time
}

func NewInteractHandler(config *config.Config) *InteractHandler {
	return &InteractHandler{
		decoderValidator: shared.NewDefaultRequestDecoderValidator(config.Logger),
		config:           config,
		now:              time.Now,
	}
}

func (h *InteractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &types.LiveBoardRequest{}

	if ok := h.decoderValidator.DecodeAndValidate(w, r, req); !ok {
		return
	}

	if req.Live != nil {
		h.config.LiveBoard.SetLive(*req.Live)
	}

	h.config.LiveBoard.Interact(h.now())

	w.WriteHeader(http.StatusNoContent)
}
