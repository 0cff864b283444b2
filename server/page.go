package server

import (
	"fmt"
	"html/template"
)

// pageName is the name the upload page is registered under with gin.
const pageName = "index"

// pageTemplate is the upload page. It posts files as "file" and camera snapshots as
// "webcam_image" data URIs.
var pageTemplate = template.Must(template.New(pageName).Funcs(template.FuncMap{"percent": percent}).Parse(`<!doctype html>
<html>
<head>
  <title>Mammals Classifier</title>
  <style>
    body { font-family: sans-serif; display:flex; flex-direction:column; align-items:center; padding-top:40px; }
    form { padding:20px; border-radius:15px; box-shadow:0 8px 20px rgba(0,0,0,0.1); text-align:center; }
    img { margin-top:20px; max-width:400px; border-radius:10px; }
    .error { color:#b71c1c; }
  </style>
</head>
<body>
  <h2>Upload an image or use the camera to classify mammals</h2>
  <form method="post" enctype="multipart/form-data">
    <input type="file" name="file"><br>
    <input type="submit" value="Upload and classify">
  </form>
  <h3>Or use the camera</h3>
  <video id="video" autoplay width="400"></video><br>
  <button id="snap">Capture and classify</button>
  <canvas id="canvas" style="display:none;"></canvas>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{if .Predictions}}
  <h3>Top {{len .Predictions}} predictions:</h3>
  <ul>
    {{range .Predictions}}<li>{{.Label}} : {{percent .Confidence}}%</li>{{end}}
  </ul>
  <img src="{{.ImageURL}}" alt="uploaded image">
  {{end}}
<script>
const video = document.getElementById('video');
const canvas = document.getElementById('canvas');
navigator.mediaDevices.getUserMedia({ video: true }).then(s => { video.srcObject = s; }).catch(e => console.error(e));
document.getElementById('snap').addEventListener('click', () => {
  canvas.width = video.videoWidth;
  canvas.height = video.videoHeight;
  canvas.getContext('2d').drawImage(video, 0, 0);
  const body = new URLSearchParams({ webcam_image: canvas.toDataURL('image/png') });
  fetch('/', { method: 'POST', body: body }).then(r => r.text()).then(html => { document.open(); document.write(html); document.close(); });
});
</script>
</body>
</html>`))

// percent formats a confidence in [0,1] with two decimals.
func percent(confidence float32) string {
	return fmt.Sprintf("%.2f", confidence*100)
}
