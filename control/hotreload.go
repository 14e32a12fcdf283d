// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide hooks for components that need to react to a config reload,
// independent of any single ConfigStore instance — cmd/gateway/main.go
// registers its log-line hook here.

package control

var reloadHooks []func()

// RegisterReloadHook adds a component reload listener.
func RegisterReloadHook(fn func()) {
	reloadHooks = append(reloadHooks, fn)
}

// TriggerHotReload dispatches all reload hooks, called by
// ControlAdapter.SetConfig after a config change is applied.
func TriggerHotReload() {
	for _, fn := range reloadHooks {
		go fn()
	}
}
