package server

import "html/template"

const pages = `
{{define "header"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: monospace; max-width: 52rem; margin: 2rem auto; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; }
nav a { margin-right: 1rem; }
.fault { color: #b00020; }
</style>
</head>
<body>
<nav>
<a href="/">home</a><a href="/login">login</a><a href="/check-user">check-user</a><a href="/logout">logout</a><a href="/corrupt">corrupt</a><a href="/secret">secret</a>
</nav>
{{end}}

{{define "footer"}}
</body>
</html>
{{end}}

{{define "home"}}{{template "header" .}}
<h1>Memory Safety Demos</h1>
<section>
<h2>Demo 1: Bounds Checking</h2>
<pre>
# Normal login (creates a session automatically):
curl -X POST {{.Base}}/login -d 'username=alice&amp;password=secret'

# Oversized password (rejected, is_admin cannot change):
curl -X POST {{.Base}}/login -d 'username=alice&amp;password=secret0123456789876543210'
</pre>
</section>
<section>
<h2>Demo 2: Dangling Sessions</h2>
<pre>
# 1. Login to create a user and a session:
curl -X POST {{.Base}}/login -d 'username=alice&amp;password=secret'

# 2. Check session and user:
curl {{.Base}}/check-user

# 3. Logout (releases the user):
curl {{.Base}}/logout

# 4. Reuse the freed slot:
curl {{.Base}}/corrupt

# 5. The session is rejected as dangling instead of reading the new bytes:
curl {{.Base}}/check-user
</pre>
</section>
{{template "footer" .}}{{end}}

{{define "login"}}{{template "header" .}}
<h1>Login</h1>
<form method="POST" action="/login">
<label>Username: <input type="text" name="username"></label><br>
<label>Password: <input type="password" name="password"></label><br>
<button type="submit">Login</button>
</form>
{{template "footer" .}}{{end}}

{{define "loggedin"}}{{template "header" .}}
<h1>Welcome, {{.User.Username}}</h1>
<pre>
is_admin:     {{.User.IsAdmin}}
User address: {{.User.Address}}
Session ID:   {{.Session.ID}}
Raw bytes:    {{.RawHex}}
</pre>
<p><a href="/check-user">Check session / user info.</a></p>
{{template "footer" .}}{{end}}

{{define "logout"}}{{template "header" .}}
<h1>User logged out</h1>
<pre>
User address (released): {{.Address}}
Sessions referencing this user are now dangling and will be rejected.

Visit <a href="/corrupt">/corrupt</a> to reuse the freed slot, then <a href="/check-user">/check-user</a>.
</pre>
{{template "footer" .}}{{end}}

{{define "corrupt"}}{{template "header" .}}
<h1>Freed slot reused</h1>
<pre>
New allocation address: {{.Corrupt.Address}}
Released user address:  {{.Corrupt.Target}}
{{if .Corrupt.Reused}}Memory reused at the same address.{{else}}Allocator used a different address.{{end}}

Now visit <a href="/check-user">/check-user</a>.
</pre>
{{template "footer" .}}{{end}}

{{define "check"}}{{template "header" .}}
<h1>Session / User Check</h1>
<pre>
Session ID: {{.Session.ID}}
Username:   {{.User.Username}}
Is Admin:   {{.User.IsAdmin}}
Address:    {{.User.Address}}
Raw bytes:  {{.RawHex}}
</pre>
{{template "footer" .}}{{end}}

{{define "secret"}}{{template "header" .}}
<h1>Secret Admin Page</h1>
<pre>
TOP SECRET DATA
  {{.Secret}}
</pre>
{{template "footer" .}}{{end}}

{{define "error"}}{{template "header" .}}
<h1 class="fault">{{.Status}} {{.Title}}</h1>
<pre class="fault">
{{.Message}}
</pre>
{{if .Kind}}<p>fault kind: <code>{{.Kind}}</code></p>{{end}}
{{template "footer" .}}{{end}}
`

var templates = template.Must(template.New("pages").Parse(pages))
