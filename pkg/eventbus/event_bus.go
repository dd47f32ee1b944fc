package eventbus

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventBus decouples domain services from followers of their events.
// Handlers are functions of exactly one parameter; Publish delivers an
// event to every handler whose parameter type the event satisfies, either
// directly or through an interface.
type EventBus interface {
	Publish(event interface{})
	Subscribe(handler interface{})
	Unsubscribe(handler interface{})
	Clear()
	SubscribersCount() int
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

type publisher struct {
	log *logrus.Logger

	mu       sync.RWMutex
	handlers []reflect.Value
}

// Publish dispatches synchronously in subscription order. A panicking
// handler is isolated: it is logged and the remaining handlers still run.
func (p *publisher) Publish(event interface{}) {
	if event == nil {
		return
	}
	eventType := reflect.TypeOf(event)
	in := []reflect.Value{reflect.ValueOf(event)}

	p.mu.RLock()
	handlers := make([]reflect.Value, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	delivered := false
	for _, h := range handlers {
		if !accepts(h.Type(), eventType) {
			continue
		}
		delivered = true
		p.invoke(h, in)
	}
	if !delivered && p.log != nil {
		p.log.WithField("event", eventType.String()).Debug("eventbus: no subscribers")
	}
}

func (p *publisher) invoke(h reflect.Value, in []reflect.Value) {
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.WithFields(logrus.Fields{
				"handler": h.Type().String(),
				"panic":   r,
			}).Error("eventbus: handler panicked")
		}
	}()
	h.Call(in)
}

// accepts reports whether a handler of type ht takes an event of type et.
func accepts(ht, et reflect.Type) bool {
	if ht.NumIn() != 1 {
		return false
	}
	param := ht.In(0)
	if param.Kind() == reflect.Interface {
		return et.Implements(param)
	}
	return et.AssignableTo(param)
}

func (p *publisher) Subscribe(handler interface{}) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != 1 {
		panic("eventbus: handler must be a function of one argument")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, reflect.ValueOf(handler))
}

func (p *publisher) Unsubscribe(handler interface{}) {
	target := reflect.ValueOf(handler)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.handlers {
		if h.Pointer() == target.Pointer() {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = nil
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}
