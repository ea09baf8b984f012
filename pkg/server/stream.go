package server

import "log/slog"

// stream writes frames to a committed response. After the first write
// error the client is considered gone: further frames are dropped while
// the caller keeps draining events.
type stream struct {
	w      FlusherWriter
	log    *slog.Logger
	broken bool
}

func (s *stream) json(typ byte, v any) {
	if s.broken {
		return
	}
	if err := WriteJSONFrame(s.w, typ, v); err != nil {
		s.fail(typ, err)
		return
	}
	s.flush(typ)
}

func (s *stream) raw(typ byte, payload []byte) {
	if s.broken {
		return
	}
	if err := WriteFrame(s.w, typ, payload); err != nil {
		s.fail(typ, err)
		return
	}
	s.flush(typ)
}

func (s *stream) flush(typ byte) {
	if err := s.w.Flush(); err != nil {
		s.fail(typ, err)
	}
}

func (s *stream) fail(typ byte, err error) {
	s.broken = true
	s.log.Debug("client gone, dropping frames", "frame", typ, "error", err)
}

func (s *stream) close() {
	if err := s.w.Close(); err != nil && !s.broken {
		s.log.Debug("closing response encoder", "error", err)
	}
}
