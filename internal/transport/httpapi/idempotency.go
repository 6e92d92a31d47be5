package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// HeaderIdempotencyKey — заголовок клиентского ключа идемпотентности.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplay выставляется при выдаче сохранённого ответа.
const HeaderIdempotencyReplay = "Idempotency-Replay"

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyMiddleware выполняет запрос с заголовком Idempotency-Key
// ровно один раз: первый запрос обрабатывается и его ответ сохраняется,
// повтор с тем же ключом и телом получает сохранённый ответ.
type IdempotencyMiddleware struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
}

// NewIdempotencyMiddleware создаёт middleware поверх IdempotencyRepository.
func NewIdempotencyMiddleware(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *IdempotencyMiddleware {
	if logger == nil {
		logger = log.New().WithField("component", "idempotency")
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// Wrap оборачивает handler idempotency-логикой. Запросы без заголовка
// проходят насквозь.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if m == nil || m.repo == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hash := requestHash(r.Method, r.URL.Path, body)
		record, err := m.repo.CreateProcessing(key, hash, time.Now().UTC().Add(m.ttl))
		switch {
		case err == nil:
			// Первый запрос с этим ключом: выполняем и сохраняем ответ.
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			writeError(w, http.StatusUnprocessableEntity, "idempotency_key_reuse",
				"idempotency key was already used with a different request")
			return
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			m.replay(w, record)
			return
		default:
			m.logger.WithError(err).WithField("idempotency_key", key).Error("idempotency lookup failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "idempotency check failed")
			return
		}

		recorder := newResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		if recorder.status < http.StatusBadRequest {
			err = m.repo.MarkDone(key, recorder.body.Bytes(), recorder.status)
		} else {
			err = m.repo.MarkFailed(key, recorder.body.Bytes(), recorder.status)
		}
		if err != nil {
			m.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	})
}

// replay выдаёт сохранённый ответ либо 409, если обработка ещё идёт.
func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, record domain.IdempotencyRecord) {
	if record.Status == domain.IdempotencyStatusProcessing {
		writeError(w, http.StatusConflict, "request_in_flight",
			"request with this idempotency key is still being processed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderIdempotencyReplay, "true")
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// requestHash привязывает ключ к содержимому запроса.
func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseRecorder дублирует ответ в буфер для последующего replay.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
