package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

const sessionKey = "session"

// SessionConfig controls the session cookie
type SessionConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// SessionMW loads the server-side session behind the cookie and writes it back
// before the response leaves.
type SessionMW struct {
	store  domain.SessionStore
	cfg    SessionConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionMW creates the session middleware
func NewSessionMW(store domain.SessionStore, cfg SessionConfig, logger *zap.Logger) *SessionMW {
	if cfg.CookieName == "" {
		cfg.CookieName = "bokohub_session"
	}
	return &SessionMW{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// CurrentSession returns the session loaded for this request
func CurrentSession(c *gin.Context) *domain.SessionRecord {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(*domain.SessionRecord); ok {
			return session
		}
	}
	return nil
}

// SetSession makes session the request's session
func SetSession(c *gin.Context, session *domain.SessionRecord) {
	c.Set(sessionKey, session)
}

// Handle returns the gin middleware
func (mw *SessionMW) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := mw.now()

		cookieToken, _ := c.Cookie(mw.cfg.CookieName)
		session, err := mw.load(ctx, cookieToken, now)
		if err != nil {
			mw.logger.Error("session store unavailable", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Service unavailable"})
			return
		}
		SetSession(c, session)

		writer := &sessionWriter{
			ResponseWriter: c.Writer,
			flush: func() error {
				return mw.flush(context.WithoutCancel(ctx), c, session, cookieToken)
			},
		}
		c.Writer = writer

		c.Next()

		// Nothing was written yet; the engine sends headers after we return.
		writer.commit()
	}
}

func (mw *SessionMW) load(ctx context.Context, token string, now time.Time) (*domain.SessionRecord, error) {
	if token == "" {
		return domain.NewSessionRecord(now, mw.cfg.TTL), nil
	}

	session, err := mw.store.Get(ctx, token)
	switch {
	case err == nil:
		session.Touch(now, mw.cfg.TTL)
		return session, nil
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionExpired):
		return domain.NewSessionRecord(now, mw.cfg.TTL), nil
	default:
		return nil, err
	}
}

func (mw *SessionMW) flush(ctx context.Context, c *gin.Context, session *domain.SessionRecord, cookieToken string) error {
	if session.Destroyed() {
		for _, token := range []string{session.Token, cookieToken} {
			if token == "" {
				continue
			}
			if err := mw.store.Destroy(ctx, token); err != nil {
				return err
			}
		}
		mw.expireCookie(c)
		return nil
	}

	if session.Dirty() {
		if err := mw.store.Put(ctx, session); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
				// Destroyed elsewhere while this request ran.
				mw.expireCookie(c)
				return nil
			}
			return err
		}
	}

	switch {
	case session.Token != "":
		mw.setCookie(c, session.Token)
	case cookieToken != "":
		mw.expireCookie(c)
	}
	return nil
}

func (mw *SessionMW) setCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     mw.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(mw.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   mw.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (mw *SessionMW) expireCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     mw.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   mw.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionWriter runs flush exactly once, before the first byte reaches the
// client. A failed flush replaces the handler's response with a 500.
type sessionWriter struct {
	gin.ResponseWriter
	flush  func() error
	done   bool
	failed bool
}

func (w *sessionWriter) commit() {
	if w.done {
		return
	}
	w.done = true
	if err := w.flush(); err != nil {
		w.failed = true
		h := w.ResponseWriter.Header()
		h.Del("Content-Disposition")
		h.Set("Content-Type", "application/json; charset=utf-8")
		w.ResponseWriter.WriteHeader(http.StatusInternalServerError)
		w.ResponseWriter.WriteHeaderNow()
		_, _ = w.ResponseWriter.Write([]byte(`{"status":"error","message":"Internal server error"}`))
	}
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	if !w.failed {
		w.ResponseWriter.WriteHeaderNow()
	}
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	w.commit()
	if w.failed {
		return len(data), nil
	}
	return w.ResponseWriter.Write(data)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	if w.failed {
		return len(s), nil
	}
	return w.ResponseWriter.WriteString(s)
}

func (w *sessionWriter) Flush() {
	w.commit()
	w.ResponseWriter.Flush()
}

// ClientContext attaches the caller's address and user agent to the request
// context for audit events.
func ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		cc := &domain.ClientContext{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(domain.WithClientContext(c.Request.Context(), cc))
		c.Next()
	}
}
