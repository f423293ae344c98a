package testsupport

import "fmt"

// blenderArgs parses the worker command line into $start, $end, and $out.
const blenderArgs = `out=""
start=""
end=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
    -s) start="$2"; shift ;;
    -e) end="$2"; shift ;;
    --) break ;;
  esac
  shift
done
`

// BlenderScript renders a frame range by writing "frames S-E" to the -o path.
const BlenderScript = blenderArgs + `echo "rendering $start-$end"
printf 'frames %s-%s\n' "$start" "$end" > "$out"
`

// BlenderScriptFailingAt behaves like BlenderScript except the worker whose
// range starts at start exits with code.
func BlenderScriptFailingAt(start, code int) string {
	return blenderArgs + fmt.Sprintf(`if [ "$start" = "%d" ]; then
  echo "Error: out of memory rendering $start-$end" >&2
  exit %d
fi
printf 'frames %%s-%%s\n' "$start" "$end" > "$out"
`, start, code)
}

// BlenderScriptDelayed sleeps longer for earlier ranges so completion order
// is the reverse of submission order.
const BlenderScriptDelayed = blenderArgs + `case "$start" in
  0) sleep 0.6 ;;
  *) sleep 0.1 ;;
esac
printf 'frames %s-%s\n' "$start" "$end" > "$out"
`

// FFmpegScript joins concat manifest entries into the output path, or copies
// the first input when no concat demuxer is requested.
const FFmpegScript = `for last; do :; done
mode=copy
input=""
prev=""
for a; do
  [ "$a" = "concat" ] && mode=concat
  if [ "$prev" = "-i" ] && [ -z "$input" ]; then input="$a"; fi
  prev="$a"
done
if [ "$mode" = concat ]; then
  : > "$last"
  sed -n "s/^file '\(.*\)'\$/\1/p" "$input" | while IFS= read -r f; do cat "$f" >> "$last"; done
else
  cat "$input" > "$last"
fi
`

// FFmpegScriptFailing exits non-zero with a diagnostic on stderr.
const FFmpegScriptFailing = `echo "concat.txt: Invalid data found when processing input" >&2
exit 1
`

// FFprobeScript reports a single video stream for any input.
const FFprobeScript = `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","nb_frames":"1"}],"format":{"duration":"1.0","size":"64"}}
JSON
`
