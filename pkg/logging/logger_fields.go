package logging

import (
	"time"
)

// Field constructors

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Duration renders d in Go duration syntax so logs stay readable
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.String()}
}

// Error records err under "error"; a nil error is kept as null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Node graph fields

func Component(name string) Field {
	return String("component", name)
}

// NodeID is the arena id of a node within its network
func NodeID(id uint32) Field {
	return Field{Key: "node_id", Value: id}
}

func NodeName(name string) Field {
	return String("node", name)
}

func Network(name string) Field {
	return String("network", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func PassID(id string) Field {
	return String("pass_id", id)
}

func Generation(gen uint64) Field {
	return Field{Key: "generation", Value: gen}
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
