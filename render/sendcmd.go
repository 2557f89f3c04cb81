package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/vmatresu/vclip/models"
)

// WriteSendcmdFile renders a camera path into a sendcmd command file
// addressing a named crop filter instance. One interval per keyframe keeps
// the command list time-indexed and single-pass.
func WriteSendcmdFile(path string, target string, keyframes []models.CameraKeyframe) error {
	var sb strings.Builder
	for _, kf := range keyframes {
		x := kf.CX - kf.Width/2
		y := kf.CY - kf.Height/2
		fmt.Fprintf(&sb, "%.3f crop@%s w %d, crop@%s h %d, crop@%s x %d, crop@%s y %d;\n",
			kf.Time,
			target, int(kf.Width),
			target, int(kf.Height),
			target, int(x),
			target, int(y),
		)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// AppendSendcmdFile adds a second target's commands to an existing file so
// both split panels drive off one command list.
func AppendSendcmdFile(path string, target string, keyframes []models.CameraKeyframe) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var sb strings.Builder
	for _, kf := range keyframes {
		x := kf.CX - kf.Width/2
		y := kf.CY - kf.Height/2
		fmt.Fprintf(&sb, "%.3f crop@%s w %d, crop@%s h %d, crop@%s x %d, crop@%s y %d;\n",
			kf.Time,
			target, int(kf.Width),
			target, int(kf.Height),
			target, int(x),
			target, int(y),
		)
	}
	_, err = f.WriteString(sb.String())
	return err
}

// IntelligentFilter builds the dynamic crop graph for a full-layout
// intelligent style. The sendcmd file drives the crop@cam instance.
func IntelligentFilter(cmdFile string, first models.CameraKeyframe, outW, outH int) string {
	x := int(first.CX - first.Width/2)
	y := int(first.CY - first.Height/2)
	return fmt.Sprintf(
		"sendcmd=f=%s,crop@cam=w=%d:h=%d:x=%d:y=%d,scale=%d:%d",
		cmdFile, int(first.Width), int(first.Height), x, y, outW, outH)
}

// IntelligentSplitFilter builds the two-branch stacked graph: each branch
// has its own named crop driven by the shared command file.
func IntelligentSplitFilter(cmdFile string, top, bottom models.CameraKeyframe, outW, outH int) string {
	panelH := outH / 2
	tx := int(top.CX - top.Width/2)
	ty := int(top.CY - top.Height/2)
	bx := int(bottom.CX - bottom.Width/2)
	by := int(bottom.CY - bottom.Height/2)
	return fmt.Sprintf(
		"sendcmd=f=%s,split=2[a][b];"+
			"[a]crop@top=w=%d:h=%d:x=%d:y=%d,scale=%d:%d[topp];"+
			"[b]crop@bottom=w=%d:h=%d:x=%d:y=%d,scale=%d:%d[botp];"+
			"[topp][botp]vstack=inputs=2",
		cmdFile,
		int(top.Width), int(top.Height), tx, ty, outW, panelH,
		int(bottom.Width), int(bottom.Height), bx, by, outW, panelH)
}
