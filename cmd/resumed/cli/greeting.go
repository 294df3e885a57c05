package cli

import (
	"fmt"
	"net/http"
)

var greeting string

func PrepareGreeting() {
	greeting = fmt.Sprintf(
		`Hello, this is resumed, a server for resumable uploads.

The server is running and accepts tus requests at the %s route. This root
route only serves this greeting, so point your upload client at the route
above and start uploading.

Version = %s
GitCommit = %s
BuildDate = %s
`, Flags.Basepath, VersionName, GitCommit, BuildDate)
}

func DisplayGreeting(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(greeting))
}
