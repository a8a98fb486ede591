package stripes

import (
	"net/http"
	"reflect"
	"sync"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
	"github.com/stripes-go/stripes/pkg/stripes/param"
)

// DefaultSessionCookie names the cookie carrying the session id
const DefaultSessionCookie = "STRIPES_SESSION"

// sessionID returns the id from the session cookie, issuing a new one when
// the request carries none
func (d *Dispatcher) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(d.sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := d.newSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     d.sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// promoteFlash consumes the scope named by __fsk and exposes its values as
// request attributes
func (d *Dispatcher) promoteFlash(ctx *action.Context) error {
	id := ctx.Request.Param(param.FlashScopeKey)
	if id == "" || d.flash == nil {
		return nil
	}
	scope, err := d.flash.Consume(ctx.Ctx(), ctx.Session, id)
	if err != nil {
		return err
	}
	if scope == nil {
		d.logger.Debug("flash scope not found or expired", "id", id)
		return nil
	}
	for name, value := range scope.Values() {
		ctx.Request.SetAttribute(name, value)
	}
	return nil
}

type sessionKey struct {
	session string
	bean    reflect.Type
}

// sessionBeans holds session-scoped action beans in memory
type sessionBeans struct {
	mutex sync.Mutex
	beans map[sessionKey]action.ActionBean
}

func newSessionBeans() *sessionBeans {
	return &sessionBeans{beans: make(map[sessionKey]action.ActionBean)}
}

func (s *sessionBeans) get(session string, def *controller.Bean) action.ActionBean {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := sessionKey{session: session, bean: def.Type}
	if bean, ok := s.beans[key]; ok {
		return bean
	}
	bean := def.New()
	s.beans[key] = bean
	return bean
}

func (s *sessionBeans) put(session string, def *controller.Bean, bean action.ActionBean) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.beans[sessionKey{session: session, bean: def.Type}] = bean
}

func typeOf(bean action.ActionBean) reflect.Type {
	if bean == nil {
		return nil
	}
	return reflect.TypeOf(bean)
}
