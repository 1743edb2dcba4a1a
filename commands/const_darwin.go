package commands

const (
	_var = "/usr/local/var/com.github.sheetwatch"

	DEFAULT_WORKDIR = _var
)
