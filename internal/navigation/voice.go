package navigation

import (
	"sync"

	"github.com/evermore-parks/parknav/pkg/util"
)

// Speaker is the text-to-speech sink. Speak is expected to be quick; slow
// sinks only delay their own queue, never the navigation loop.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Announcer debounces spoken instructions: a line is voiced only when its
// text differs from the one spoken before it. Ending the session silences
// the speaker and discards anything still queued.
type Announcer struct {
	speaker Speaker

	mu         sync.Mutex
	queue      chan string
	stop       chan struct{}
	lastSpoken string
	active     bool
}

func NewAnnouncer(speaker Speaker, depth int) *Announcer {
	if depth <= 0 {
		depth = 4
	}
	return &Announcer{speaker: speaker, queue: make(chan string, depth)}
}

// StartSession arms the announcer for a fresh session and resets the
// debounce memory.
func (a *Announcer) StartSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		a.active = true
		a.stop = make(chan struct{})
		go a.run(a.queue, a.stop)
	}
	a.lastSpoken = ""
}

// Announce queues text for speech unless it matches the previous
// announcement or no session is active. A full queue drops the line; the
// next fix will reissue the current instruction anyway.
func (a *Announcer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active || text == "" || text == a.lastSpoken {
		return
	}
	select {
	case a.queue <- text:
		a.lastSpoken = text
	default:
		util.LogWithLabel("voice", "announcement dropped, queue full: %s", text)
	}
}

// EndSession silences the speaker and stops the worker. Lines queued but not
// yet spoken are discarded with the old queue; nothing is voiced after the
// session ends. Safe to call when no session is active.
func (a *Announcer) EndSession() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	close(a.stop)
	a.queue = make(chan string, cap(a.queue))
	a.lastSpoken = ""
	a.mu.Unlock()

	if a.speaker != nil {
		a.speaker.Stop()
	}
}

func (a *Announcer) run(queue chan string, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case text := <-queue:
			// The session may have ended while this line sat in the queue.
			select {
			case <-stop:
				return
			default:
			}
			if a.speaker != nil {
				a.speaker.Speak(text)
			}
		}
	}
}
