package tools

// keyParams carries the Windows virtual key code and DOM identifiers the
// input domain expects for a named key.
type keyParams struct {
	keyCode int
	code    string
	key     string
}

// namedKeys maps the keys the oracle commonly asks for. Anything absent is
// dispatched with just its key name, which works for printable characters.
var namedKeys = map[string]keyParams{
	"Enter":      {keyCode: 13, code: "Enter", key: "Enter"},
	"Tab":        {keyCode: 9, code: "Tab", key: "Tab"},
	"Escape":     {keyCode: 27, code: "Escape", key: "Escape"},
	"Backspace":  {keyCode: 8, code: "Backspace", key: "Backspace"},
	"Delete":     {keyCode: 46, code: "Delete", key: "Delete"},
	"ArrowUp":    {keyCode: 38, code: "ArrowUp", key: "ArrowUp"},
	"ArrowDown":  {keyCode: 40, code: "ArrowDown", key: "ArrowDown"},
	"ArrowLeft":  {keyCode: 37, code: "ArrowLeft", key: "ArrowLeft"},
	"ArrowRight": {keyCode: 39, code: "ArrowRight", key: "ArrowRight"},
}

// keyEventParams builds the dispatchKeyEvent parameter set for a named key.
func keyEventParams(eventType, key string) map[string]interface{} {
	params := map[string]interface{}{"type": eventType}
	if kp, ok := namedKeys[key]; ok {
		params["windowsVirtualKeyCode"] = kp.keyCode
		params["nativeVirtualKeyCode"] = kp.keyCode
		params["code"] = kp.code
		params["key"] = kp.key
	} else {
		params["key"] = key
	}
	return params
}
