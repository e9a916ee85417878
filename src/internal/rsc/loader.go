package rsc

import (
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

const (
	DefaultLoaderName = "geoip-update"
	DefaultRamdisk    = "tmpfs1"

	loaderPolicy = "ftp,reboot,read,write,policy,test,password,sniff,sensitive,romon"
)

// loaderSourceTemplate is the body of the /system script. It runs on the
// router: "$ramdisk" is a RouterOS variable, not a template tag.
const loaderSourceTemplate = `:local ramdisk "{{ramdisk}}"
:if ([:len [/disk find slot=$ramdisk]] = 0) do={
    :log warning "RAM disk <$ramdisk> missing, creating it"
    /disk add type=tmpfs tmpfs-max-size={{tmpfs}} slot=$ramdisk
    :delay 1s
}
/tool fetch url="{{url}}" dst-path="$ramdisk/{{file}}"
:delay 10
/import file-name="$ramdisk/{{file}}" verbose=yes
/file remove [find name="$ramdisk/{{file}}"]`

const loaderTemplate = `/system script
:do { remove [find name="{{name}}"] } on-error={}
add dont-require-permissions=yes name="{{name}}" policy={{policy}} source="{{source}}"
/system scheduler
:do { remove [find name="{{name}}"] } on-error={}
add interval={{interval}} name="{{name}}" on-event="{{name}}" policy={{policy}} start-time=startup
`

var (
	loaderSourceTmpl = fasttemplate.New(loaderSourceTemplate, "{{", "}}")
	loaderTmpl       = fasttemplate.New(loaderTemplate, "{{", "}}")
)

// LoaderOptions configures RenderLoader.
type LoaderOptions struct {
	// URL of the list script the router should download.
	URL string
	// Name of the /system script and scheduler entries.
	Name         string
	Ramdisk      string
	TmpfsMaxSize string
	Interval     time.Duration
}

// RenderLoader produces a script that installs a scheduled job on the router.
// The job creates a size-bounded tmpfs disk when missing, downloads URL into
// it and imports it, so repeated updates do not wear the flash storage.
func RenderLoader(opts LoaderOptions) (string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return "", errors.NewValidationError("loader URL is required", nil)
	}
	name := utils.NormalizeListName(opts.Name)
	if strings.TrimSpace(opts.Name) == "" {
		name = DefaultLoaderName
	}
	ramdisk := opts.Ramdisk
	if ramdisk == "" {
		ramdisk = DefaultRamdisk
	}
	tmpfs := opts.TmpfsMaxSize
	if tmpfs == "" {
		tmpfs = DefaultOptions().TmpfsMaxSize
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	source := loaderSourceTmpl.ExecuteString(map[string]interface{}{
		"ramdisk": utils.NormalizeListName(ramdisk),
		"tmpfs":   tmpfs,
		"url":     strings.ReplaceAll(opts.URL, `"`, "%22"),
		"file":    name + ".rsc",
	})
	source = strings.ReplaceAll(source, "\n", "\r\n")

	return loaderTmpl.ExecuteString(map[string]interface{}{
		"name":     name,
		"policy":   loaderPolicy,
		"source":   escapeString(source),
		"interval": utils.FormatRouterOSDuration(interval),
	}), nil
}
