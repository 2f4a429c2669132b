package utils

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/skip2/go-qrcode"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Welcome</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Thanks for your order!</h2>
		<p>A customer profile was created for <b>{{.Email}}</b>.</p>
		<p>Your purchases are saved to this profile. Register with the same email to sign in and see them.</p>
	</div>
</body>
</html>`))

	fileTmpl = template.Must(template.New("file").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Your files</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">{{.FileName}}</h2>
		<p>Thank you for your purchase. Your file is attached to this email.</p>
		{{if .DownloadURL}}<p>You can also download it here (the link expires): <a href="{{.DownloadURL}}">{{.FileName}}</a></p>
		<p>Or scan the attached QR code.</p>{{end}}
	</div>
</body>
</html>`))

	recoveryTmpl = template.Must(template.New("recovery").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Password recovery</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Your temporary password</h2>
		<p>Use this password to sign in, then change it from your profile:</p>
		<p style="font-size: 20px; font-weight: bold; letter-spacing: 2px;">{{.Password}}</p>
		<p style="font-size: 14px; color: #888;">If you did not ask for this, sign in with it and choose a new password.</p>
	</div>
</body>
</html>`))
)

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("erreur exécution template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// WelcomeEmail construit l'email envoyé lors de la création d'un profil squelette.
func WelcomeEmail(email string) (subject, html string, err error) {
	html, err = render(welcomeTmpl, map[string]string{"Email": email})
	return "Welcome to the shop", html, err
}

// FileDeliveryEmail construit l'email de livraison d'un fichier acheté.
func FileDeliveryEmail(fileName, downloadURL string) (subject, html string, err error) {
	html, err = render(fileTmpl, map[string]string{"FileName": fileName, "DownloadURL": downloadURL})
	return "Your purchase: " + fileName, html, err
}

// PasswordRecoveryEmail contient le mot de passe temporaire en clair, envoyé une seule fois.
func PasswordRecoveryEmail(password string) (subject, html string, err error) {
	html, err = render(recoveryTmpl, map[string]string{"Password": password})
	return "Your temporary password", html, err
}

// DownloadQRCode encode le lien de téléchargement en PNG.
func DownloadQRCode(url string) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, 256)
}
