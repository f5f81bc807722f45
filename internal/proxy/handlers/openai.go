package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/formzs/poe-to-gpt/internal/botmap"
	"github.com/formzs/poe-to-gpt/internal/logging"
	"github.com/formzs/poe-to-gpt/internal/pool"
	"github.com/formzs/poe-to-gpt/internal/proxy/mappers"
	"github.com/formzs/poe-to-gpt/internal/proxy/middleware"
	"github.com/formzs/poe-to-gpt/internal/upstream"
	"github.com/formzs/poe-to-gpt/internal/util"
)

// ChatCompletionsHandler serves POST /v1/chat/completions in both plain
// and streaming modes.
func ChatCompletionsHandler(tokens *pool.Pool, client *upstream.Client, catalog *botmap.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mappers.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), errTypeInvalidRequest)
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), errTypeInvalidRequest)
			return
		}

		bot, err := mappers.ResolveBot(catalog, req.Model)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), errTypeInvalidRequest)
			return
		}

		token, err := tokens.Select()
		if err != nil {
			if errors.Is(err, pool.ErrPoolEmpty) {
				writeError(w, http.StatusServiceUnavailable, "no upstream tokens available", errTypeUpstream)
				return
			}
			writeError(w, http.StatusInternalServerError, "token selection failed", errTypeInternal)
			return
		}

		query := mappers.BuildQuery(&req)
		var callerKey string
		if id, ok := middleware.FromContext(r.Context()); ok {
			callerKey = id.APIKey
		}
		requestID := completionID(callerKey)
		log := logrus.WithFields(logrus.Fields{
			"request_id": logging.RequestID(r.Context()),
			"model":      req.Model,
			"bot":        bot,
			"stream":     req.Stream,
		})
		log.Info("chat completion dispatched")

		if req.Stream {
			streamCompletion(w, r, client, log, bot, token, requestID, req.Model, query)
			return
		}

		content, err := client.Complete(r.Context(), bot, token, query)
		if err != nil {
			var botErr *upstream.BotError
			if errors.As(err, &botErr) {
				log.WithError(botErr).Warn("upstream rejected completion")
				writeError(w, http.StatusBadGateway, botErr.Text, errTypeUpstream)
				return
			}
			log.WithError(err).Error("completion failed")
			writeError(w, http.StatusBadGateway, "upstream request failed", errTypeUpstream)
			return
		}

		log.WithField("reply", util.TruncateLog(content, util.DefaultLogMaxLen)).Debug("completion finished")
		writeJSON(w, http.StatusOK, mappers.NewCompletion(requestID, req.Model, content, mappers.EstimateUsage(&req, content)))
	}
}

func streamCompletion(w http.ResponseWriter, r *http.Request, client *upstream.Client, log *logrus.Entry, bot, token, requestID, model string, query upstream.Query) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", errTypeInternal)
		return
	}

	stream, err := client.Stream(r.Context(), bot, token, query)
	if err != nil {
		var botErr *upstream.BotError
		if errors.As(err, &botErr) {
			writeError(w, http.StatusBadGateway, botErr.Text, errTypeUpstream)
			return
		}
		log.WithError(err).Error("stream open failed")
		writeError(w, http.StatusBadGateway, "upstream request failed", errTypeUpstream)
		return
	}
	defer stream.Close()

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	dedup := NewStreamDeduper()
	for {
		event, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var botErr *upstream.BotError
			if errors.As(err, &botErr) {
				log.WithError(botErr).Warn("upstream error mid-stream")
				sendChunk(w, flusher, mappers.NewErrorChunk(requestID, model, botErr.Text))
				sendDone(w, flusher)
				return
			}
			if r.Context().Err() != nil {
				log.Debug("client disconnected")
				return
			}
			// Transport failure after headers went out. The client sees
			// a truncated stream without a terminator.
			log.WithError(err).Error("stream aborted")
			return
		}
		delta, emit := dedup.Push(event.Text)
		if !emit {
			continue
		}
		sendChunk(w, flusher, mappers.NewContentChunk(requestID, model, delta))
	}

	sendChunk(w, flusher, mappers.NewFinishChunk(requestID, model))
	sendDone(w, flusher)
	log.WithFields(logrus.Fields{
		"chunks": dedup.Emitted(),
		"reply":  util.TruncateLog(dedup.Total(), util.DefaultLogMaxLen),
	}).Debug("stream finished")
}

func sendChunk(w http.ResponseWriter, flusher http.Flusher, chunk mappers.StreamChunk) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func sendDone(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// ModelsHandler serves GET /v1/models with the catalog contents.
func ModelsHandler(catalog *botmap.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := catalog.Models()
		created := time.Now().Unix()
		list := mappers.ModelList{Object: "list", Data: make([]mappers.ModelInfo, 0, len(models))}
		for _, name := range models {
			list.Data = append(list.Data, mappers.ModelInfo{
				ID:      name,
				Object:  "model",
				Created: created,
				OwnedBy: "poe",
			})
		}
		writeJSON(w, http.StatusOK, list)
	}
}
