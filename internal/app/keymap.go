package app

// Key binding constants used in handleKey.
const (
	KeyQuit        = "q"
	KeyQuitUpper   = "Q"
	KeyCtrlC       = "ctrl+c"
	KeySpace       = " "
	KeyTab         = "tab"
	KeyUp          = "up"
	KeyDown        = "down"
	KeyJ           = "j"
	KeyK           = "k"
	KeyEnter       = "enter"
	KeyLeft        = "left"
	KeyRight       = "right"
	KeyDraw        = "d"
	KeySave        = "s"
	KeyDiscard     = "x"
	KeyReplay      = "r"
	KeyPlayPause   = "p"
	KeyCycleColor  = "c"
	KeyRefreshList = "l"
)

// seekStep is how far the arrow keys move the video, in seconds.
const seekStep = 5.0

// palette is cycled by KeyCycleColor.
var palette = []string{"#ff3b30", "#ffcc00", "#34c759", "#0a84ff", "#ffffff"}
