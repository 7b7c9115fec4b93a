package trap

import "github.com/aegros/kernel/internal/proc"

// ringBufferSize bounds the keyboard scancode / mouse packet queues a
// handler may fill without blocking: a trap handler must never block.
const ringBufferSize = 256

// Keyboard models the IRQ 0x21 handler: it pushes a scancode into a
// ring buffer the TTY device later drains. Real PS/2 decoding is not
// modeled; only the ring-buffer contract is.
type Keyboard struct {
	scancodes chan byte
}

func NewKeyboard() *Keyboard {
	return &Keyboard{scancodes: make(chan byte, ringBufferSize)}
}

// Install registers the keyboard's IRQ handler on t.
func (k *Keyboard) Install(t *Table) {
	t.Install(VecKeyboard, k.handle)
}

func (k *Keyboard) handle(tf *proc.TrapFrame) {
	AssertIntsDisabled()
	select {
	case k.scancodes <- byte(tf.Args[0]):
	default:
		// ring buffer full: drop the oldest scancode the way a real
		// PS/2 ring buffer would rather than block the handler.
		<-k.scancodes
		k.scancodes <- byte(tf.Args[0])
	}
}

// Pop drains the next scancode, or reports none available.
func (k *Keyboard) Pop() (byte, bool) {
	select {
	case b := <-k.scancodes:
		return b, true
	default:
		return 0, false
	}
}

// MousePacket is one 3-byte PS/2-style packet.
type MousePacket struct {
	Flags byte
	DX    int8
	DY    int8
}

// Mouse models the mouse IRQ's ring buffer of MousePacket.
type Mouse struct {
	packets chan MousePacket
}

func NewMouse() *Mouse {
	return &Mouse{packets: make(chan MousePacket, ringBufferSize)}
}

func (m *Mouse) Install(t *Table) {
	t.Install(VecMouse, m.handle)
}

func (m *Mouse) handle(tf *proc.TrapFrame) {
	AssertIntsDisabled()
	pkt := MousePacket{
		Flags: byte(tf.Args[0]),
		DX:    int8(tf.Args[1]),
		DY:    int8(tf.Args[2]),
	}
	select {
	case m.packets <- pkt:
	default:
		<-m.packets
		m.packets <- pkt
	}
}

func (m *Mouse) Pop() (MousePacket, bool) {
	select {
	case p := <-m.packets:
		return p, true
	default:
		return MousePacket{}, false
	}
}
