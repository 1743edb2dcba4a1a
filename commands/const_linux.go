package commands

const (
	_var = "/usr/local/var/sheetwatch"

	DEFAULT_WORKDIR = _var
)
