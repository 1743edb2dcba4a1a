package commands

const (
	_var = `C:\sheetwatch`

	DEFAULT_WORKDIR = _var
)
